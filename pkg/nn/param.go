// Package nn holds the small numerical toolkit the models are built on:
// trainable parameters, initialisers, activations, losses, the Adam
// optimizer and the parameter checkpoint codec.
//
// Every tensor is a gonum *mat.Dense. A batch of matrices is a []*mat.Dense
// indexed by batch element.
package nn

import (
	"gonum.org/v1/gonum/mat"
)

// Param is a named trainable matrix with its accumulated gradient.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

// NewParam allocates a zero-valued r×c parameter.
func NewParam(name string, r, c int) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(r, c, nil),
		Grad:  mat.NewDense(r, c, nil),
	}
}

// ZeroGrad resets the accumulated gradient.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// Size returns the number of scalars held by the parameter.
func (p *Param) Size() int {
	r, c := p.Value.Dims()
	return r * c
}

// Data exposes the contiguous backing slice of the value.
func (p *Param) Data() []float64 {
	return p.Value.RawMatrix().Data
}

// GradData exposes the contiguous backing slice of the gradient.
func (p *Param) GradData() []float64 {
	return p.Grad.RawMatrix().Data
}

// CountParams sums the sizes of params.
func CountParams(params []*Param) int {
	total := 0
	for _, p := range params {
		total += p.Size()
	}
	return total
}
