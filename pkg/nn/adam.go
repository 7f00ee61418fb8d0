package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam hyper-parameters.
const (
	AdamBeta1   = 0.9
	AdamBeta2   = 0.999
	AdamEpsilon = 1e-8
)

// Adam implements the Adam optimizer with L2 weight decay folded into the
// gradient (the coupled form, not AdamW).
type Adam struct {
	params      []*Param
	lr          float64
	weightDecay float64
	step        int

	m []*mat.Dense
	v []*mat.Dense
}

// NewAdam creates an optimizer over params.
func NewAdam(params []*Param, lr, weightDecay float64) *Adam {
	a := &Adam{
		params:      params,
		lr:          lr,
		weightDecay: weightDecay,
		m:           make([]*mat.Dense, len(params)),
		v:           make([]*mat.Dense, len(params)),
	}
	for i, p := range params {
		r, c := p.Value.Dims()
		a.m[i] = mat.NewDense(r, c, nil)
		a.v[i] = mat.NewDense(r, c, nil)
	}
	return a
}

// ZeroGrad clears the gradients of every managed parameter.
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.ZeroGrad()
	}
}

// Steps returns how many updates were applied.
func (a *Adam) Steps() int {
	return a.step
}

// Step applies one update using the accumulated gradients.
func (a *Adam) Step() {
	a.step++
	bc1 := 1.0 - math.Pow(AdamBeta1, float64(a.step))
	bc2 := 1.0 - math.Pow(AdamBeta2, float64(a.step))

	for i, p := range a.params {
		value := p.Data()
		grad := p.GradData()
		m := a.m[i].RawMatrix().Data
		v := a.v[i].RawMatrix().Data

		for d := range value {
			g := grad[d]
			if a.weightDecay != 0 {
				g += a.weightDecay * value[d]
			}
			m[d] = AdamBeta1*m[d] + (1-AdamBeta1)*g
			v[d] = AdamBeta2*v[d] + (1-AdamBeta2)*g*g

			mHat := m[d] / bc1
			vHat := v[d] / bc2
			value[d] -= a.lr * mHat / (math.Sqrt(vHat) + AdamEpsilon)
		}
	}
}
