package mvgrl

import (
	"math/rand"

	"github.com/cnclabs/mvgrl/pkg/nn"
	"gonum.org/v1/gonum/mat"
)

// Discriminator scores (summary, node) pairs with a bilinear form
// s = hᵀ·W·c + b.
type Discriminator struct {
	Weight *nn.Param // H×H
	Bias   *nn.Param // 1×1
}

var _ Scorer = (*Discriminator)(nil)

// NewDiscriminator creates the bilinear scorer. The weight is initialised as
// for a 1×H×H bilinear tensor: fan-in H*H, fan-out H.
func NewDiscriminator(name string, hidden int, rng *rand.Rand) *Discriminator {
	d := &Discriminator{
		Weight: nn.NewParam(name+".f_k.weight", hidden, hidden),
		Bias:   nn.NewParam(name+".f_k.bias", 1, 1),
	}
	nn.XavierUniform(d.Weight.Value, hidden*hidden, hidden, 1.0, rng)
	return d
}

// Params returns the trainable parameters in a fixed order.
func (d *Discriminator) Params() []*nn.Param {
	return []*nn.Param{d.Weight, d.Bias}
}

// Forward returns batch × 4n logits laid out as
// [h2·c1 | h1·c2 | h4·c1 | h3·c2]: positives first, negatives second.
// sBias1 and sBias2 are accepted for call compatibility and ignored.
func (d *Discriminator) Forward(c1, c2 *mat.Dense, h1, h2, h3, h4 []*mat.Dense, sBias1, sBias2 *mat.Dense) *mat.Dense {
	batch := len(h1)
	nodes, _ := h1[0].Dims()
	logits := mat.NewDense(batch, 4*nodes, nil)
	bias := d.Bias.Value.At(0, 0)

	for b := 0; b < batch; b++ {
		v1 := d.project(c1, b)
		v2 := d.project(c2, b)
		row := logits.RawRowView(b)
		for k, pair := range [4]struct {
			h []*mat.Dense
			v *mat.VecDense
		}{{h2, v1}, {h1, v2}, {h4, v1}, {h3, v2}} {
			var s mat.VecDense
			s.MulVec(pair.h[b], pair.v)
			for i := 0; i < nodes; i++ {
				row[k*nodes+i] = s.AtVec(i) + bias
			}
		}
	}
	return logits
}

// ScoreGrads holds the discriminator's input gradients.
type ScoreGrads struct {
	C1, C2         *mat.Dense
	H1, H2, H3, H4 []*mat.Dense
}

// Backward accumulates parameter gradients and returns input gradients for
// the logits gradient dLogits.
func (d *Discriminator) Backward(c1, c2 *mat.Dense, h1, h2, h3, h4 []*mat.Dense, dLogits *mat.Dense) *ScoreGrads {
	batch := len(h1)
	nodes, hidden := h1[0].Dims()
	grads := &ScoreGrads{
		C1: mat.NewDense(batch, hidden, nil),
		C2: mat.NewDense(batch, hidden, nil),
		H1: make([]*mat.Dense, batch),
		H2: make([]*mat.Dense, batch),
		H3: make([]*mat.Dense, batch),
		H4: make([]*mat.Dense, batch),
	}
	dBias := 0.0

	for b := 0; b < batch; b++ {
		row := dLogits.RawRowView(b)
		ds := func(k int) *mat.VecDense {
			return mat.NewVecDense(nodes, append([]float64(nil), row[k*nodes:(k+1)*nodes]...))
		}
		ds1, ds2, ds3, ds4 := ds(0), ds(1), ds(2), ds(3)
		for _, v := range row {
			dBias += v
		}

		v1 := d.project(c1, b)
		v2 := d.project(c2, b)

		// s = h·v  =>  dh = ds ⊗ v, dv = hᵀ·ds
		grads.H2[b] = outer(ds1, v1)
		grads.H1[b] = outer(ds2, v2)
		grads.H4[b] = outer(ds3, v1)
		grads.H3[b] = outer(ds4, v2)

		dv1 := mat.NewVecDense(hidden, nil)
		dv1.MulVec(h2[b].T(), ds1)
		var tmp mat.VecDense
		tmp.MulVec(h4[b].T(), ds3)
		dv1.AddVec(dv1, &tmp)

		dv2 := mat.NewVecDense(hidden, nil)
		dv2.MulVec(h1[b].T(), ds2)
		tmp.Reset()
		tmp.MulVec(h3[b].T(), ds4)
		dv2.AddVec(dv2, &tmp)

		// v = W·c  =>  dW = dv ⊗ c, dc = Wᵀ·dv
		cv1 := c1.RowView(b)
		cv2 := c2.RowView(b)
		var dW mat.Dense
		dW.Outer(1, dv1, cv1)
		d.Weight.Grad.Add(d.Weight.Grad, &dW)
		dW.Reset()
		dW.Outer(1, dv2, cv2)
		d.Weight.Grad.Add(d.Weight.Grad, &dW)

		var dc mat.VecDense
		dc.MulVec(d.Weight.Value.T(), dv1)
		grads.C1.SetRow(b, dc.RawVector().Data)
		dc.Reset()
		dc.MulVec(d.Weight.Value.T(), dv2)
		grads.C2.SetRow(b, dc.RawVector().Data)
	}

	d.Bias.Grad.Set(0, 0, d.Bias.Grad.At(0, 0)+dBias)
	return grads
}

// project returns W·c[b].
func (d *Discriminator) project(c *mat.Dense, b int) *mat.VecDense {
	var v mat.VecDense
	v.MulVec(d.Weight.Value, c.RowView(b))
	return &v
}

func outer(x, y *mat.VecDense) *mat.Dense {
	var m mat.Dense
	m.Outer(1, x, y)
	return &m
}
