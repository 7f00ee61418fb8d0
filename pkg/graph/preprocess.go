package graph

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DefaultPPRAlpha is the teleport probability of the diffusion view.
const DefaultPPRAlpha = 0.2

// Options controls preprocessing.
type Options struct {
	// PPRAlpha is the teleport probability of the personalised PageRank.
	PPRAlpha float64
	// DiffusionEpsilon zeroes diffusion entries below it. Zero keeps the
	// dense diffusion.
	DiffusionEpsilon float64
	// Seed drives the default split when the dataset has none.
	Seed int64
}

// DefaultOptions returns the preprocessing used for the benchmark datasets.
func DefaultOptions() Options {
	return Options{PPRAlpha: DefaultPPRAlpha}
}

// NormalizeAdj returns D^-1/2 (A+I) D^-1/2.
func NormalizeAdj(a mat.Matrix) *mat.Dense {
	n, _ := a.Dims()
	withLoops := mat.NewDense(n, n, nil)
	withLoops.Copy(a)
	for i := 0; i < n; i++ {
		withLoops.Set(i, i, withLoops.At(i, i)+1)
	}
	return symmetricNormalize(withLoops)
}

func symmetricNormalize(a *mat.Dense) *mat.Dense {
	n, _ := a.Dims()
	dinv := make([]float64, n)
	for i := 0; i < n; i++ {
		d := mat.Sum(a.RowView(i))
		if d > 0 {
			dinv[i] = 1 / math.Sqrt(d)
		}
	}
	out := mat.NewDense(n, n, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return dinv[i] * v * dinv[j]
	}, a)
	return out
}

// PPRDiffusion computes alpha * (I - (1-alpha) * D^-1/2 (A+I) D^-1/2)^-1.
func PPRDiffusion(a mat.Matrix, alpha float64) (*mat.Dense, error) {
	if alpha <= 0 || alpha >= 1 {
		return nil, errors.Errorf("ppr alpha %v must be in (0,1)", alpha)
	}
	n, _ := a.Dims()
	at := NormalizeAdj(a)

	system := mat.NewDense(n, n, nil)
	system.Scale(-(1 - alpha), at)
	for i := 0; i < n; i++ {
		system.Set(i, i, system.At(i, i)+1)
	}

	var inv mat.Dense
	if err := inv.Inverse(system); err != nil {
		return nil, errors.Wrap(err, "failed to invert diffusion system")
	}
	inv.Scale(alpha, &inv)
	return &inv, nil
}

// Sparsify zeroes entries of m below eps in place.
func Sparsify(m *mat.Dense, eps float64) {
	if eps <= 0 {
		return
	}
	m.Apply(func(_, _ int, v float64) float64 {
		if v < eps {
			return 0
		}
		return v
	}, m)
}

// RowNormalize divides every row by its sum. Rows summing to zero are left
// untouched.
func RowNormalize(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		sum := 0.0
		for _, v := range row {
			sum += v
		}
		dst := out.RawRowView(i)
		copy(dst, row)
		if sum != 0 {
			for j := range dst {
				dst[j] /= sum
			}
		}
	}
	return out
}

// Build turns raw components into a preprocessed Graph.
func Build(raw *Raw, opts Options) (*Graph, error) {
	if err := raw.validate(); err != nil {
		return nil, err
	}
	if opts.PPRAlpha == 0 {
		opts.PPRAlpha = DefaultPPRAlpha
	}

	ori := raw.Adjacency()
	diff, err := PPRDiffusion(ori, opts.PPRAlpha)
	if err != nil {
		return nil, errors.WithMessagef(err, "dataset %q", raw.Name)
	}
	Sparsify(diff, opts.DiffusionEpsilon)

	g := &Graph{
		Name:        raw.Name,
		OriginalAdj: ori,
		Adj:         NormalizeAdj(ori),
		Diff:        diff,
		Features:    RowNormalize(raw.Features),
		Labels:      append([]int(nil), raw.Labels...),
		NumClasses:  raw.NumClasses(),
		NodeNames:   append([]string(nil), raw.Names...),
	}
	if raw.Split != nil {
		g.TrainIdx, g.ValIdx, g.TestIdx = raw.Split.Train, raw.Split.Val, raw.Split.Test
	} else {
		s := PlanetoidSplit(g.Labels, g.NumClasses, opts.Seed)
		g.TrainIdx, g.ValIdx, g.TestIdx = s.Train, s.Val, s.Test
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
