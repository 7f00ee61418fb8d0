package mvgrl

import (
	"math/rand"

	"github.com/cnclabs/mvgrl/pkg/nn"
	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// DefaultPReLUSlope is the initial slope of the learned activation.
const DefaultPReLUSlope = 0.25

// Activation keeps what an encoder pass needs for its backward pass.
type Activation struct {
	Seq    []*mat.Dense
	Adj    []mat.Matrix
	Sparse bool
	Pre    []*mat.Dense // pre-activation A·X·Wᵀ + b
	Out    []*mat.Dense
}

// GCN is a single graph-convolution layer:
// PReLU(A · X · Wᵀ + b) with one shared learned slope.
type GCN struct {
	Weight *nn.Param // out×in
	Bias   *nn.Param // 1×out, nil without bias
	Slope  *nn.Param // 1×1
}

var _ Encoder = (*GCN)(nil)

// NewGCN creates a layer with a Xavier-uniform weight and a zero bias.
func NewGCN(name string, inFt, outFt int, bias bool, rng *rand.Rand) *GCN {
	g := &GCN{
		Weight: nn.NewParam(name+".fc.weight", outFt, inFt),
		Slope:  nn.NewParam(name+".act.weight", 1, 1),
	}
	nn.XavierUniform(g.Weight.Value, inFt, outFt, 1.0, rng)
	g.Slope.Value.Set(0, 0, DefaultPReLUSlope)
	if bias {
		g.Bias = nn.NewParam(name+".bias", 1, outFt)
	}
	return g
}

// OutFeatures returns the embedding width.
func (g *GCN) OutFeatures() int {
	r, _ := g.Weight.Value.Dims()
	return r
}

// Params returns the trainable parameters in a fixed order.
func (g *GCN) Params() []*nn.Param {
	params := []*nn.Param{g.Weight}
	if g.Bias != nil {
		params = append(params, g.Bias)
	}
	return append(params, g.Slope)
}

// Forward encodes every batch element. With sparse set, adjacencies are
// aggregated in compressed sparse row form.
func (g *GCN) Forward(seq []*mat.Dense, adj []mat.Matrix, sparse bool) *Activation {
	if len(seq) != len(adj) {
		panic("mvgrl: GCN batch size mismatch between features and adjacency")
	}
	act := &Activation{
		Seq:    seq,
		Adj:    make([]mat.Matrix, len(adj)),
		Sparse: sparse,
		Pre:    make([]*mat.Dense, len(seq)),
		Out:    make([]*mat.Dense, len(seq)),
	}
	slope := g.Slope.Value.At(0, 0)

	for b := range seq {
		var proj mat.Dense
		proj.Mul(seq[b], g.Weight.Value.T())

		var z *mat.Dense
		if sparse {
			csr := asCSR(adj[b])
			act.Adj[b] = csr
			z = csrMul(csr, &proj)
		} else {
			act.Adj[b] = adj[b]
			z = &mat.Dense{}
			z.Mul(adj[b], &proj)
		}

		if g.Bias != nil {
			bias := g.Bias.Value.RawRowView(0)
			rows, _ := z.Dims()
			for i := 0; i < rows; i++ {
				row := z.RawRowView(i)
				for j := range row {
					row[j] += bias[j]
				}
			}
		}

		out := mat.DenseCopyOf(z)
		out.Apply(func(_, _ int, v float64) float64 {
			return nn.PReLU(v, slope)
		}, out)

		act.Pre[b] = z
		act.Out[b] = out
	}
	return act
}

// Backward accumulates parameter gradients given the gradient of the output.
func (g *GCN) Backward(act *Activation, dOut []*mat.Dense) {
	slope := g.Slope.Value.At(0, 0)
	dSlope := 0.0

	for b := range act.Pre {
		pre := act.Pre[b]
		rows, cols := pre.Dims()
		dz := mat.NewDense(rows, cols, nil)
		for i := 0; i < rows; i++ {
			zRow := pre.RawRowView(i)
			gRow := dOut[b].RawRowView(i)
			dRow := dz.RawRowView(i)
			for j, z := range zRow {
				if z > 0 {
					dRow[j] = gRow[j]
				} else {
					dRow[j] = slope * gRow[j]
					dSlope += gRow[j] * z
				}
			}
		}

		if g.Bias != nil {
			dBias := g.Bias.Grad.RawRowView(0)
			for i := 0; i < rows; i++ {
				for j, v := range dz.RawRowView(i) {
					dBias[j] += v
				}
			}
		}

		// proj = X·Wᵀ, z = A·proj  =>  dProj = Aᵀ·dz, dW = dProjᵀ·X
		var dProj *mat.Dense
		if act.Sparse {
			dProj = csrMul(transposeCSR(act.Adj[b].(*sparse.CSR)), dz)
		} else {
			dProj = &mat.Dense{}
			dProj.Mul(act.Adj[b].T(), dz)
		}
		var dW mat.Dense
		dW.Mul(dProj.T(), act.Seq[b])
		g.Weight.Grad.Add(g.Weight.Grad, &dW)
	}

	g.Slope.Grad.Set(0, 0, g.Slope.Grad.At(0, 0)+dSlope)
}

// asCSR returns m in compressed sparse row form.
func asCSR(m mat.Matrix) *sparse.CSR {
	if csr, ok := m.(*sparse.CSR); ok {
		return csr
	}
	r, c := m.Dims()
	dok := sparse.NewDOK(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); v != 0 {
				dok.Set(i, j, v)
			}
		}
	}
	return dok.ToCSR()
}

func transposeCSR(a *sparse.CSR) *sparse.CSR {
	r, c := a.Dims()
	dok := sparse.NewDOK(c, r)
	a.DoNonZero(func(i, j int, v float64) {
		dok.Set(j, i, v)
	})
	return dok.ToCSR()
}

// csrMul returns a·b as a dense matrix.
func csrMul(a *sparse.CSR, b mat.Matrix) *mat.Dense {
	var out sparse.CSR
	out.Mul(a, b)
	return out.ToDense()
}
