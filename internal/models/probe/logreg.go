// Package probe measures embedding quality with repeated linear classifiers
// trained on frozen embeddings.
package probe

import (
	"math/rand"

	"github.com/cnclabs/mvgrl/pkg/nn"
	"gonum.org/v1/gonum/mat"
)

// LogReg is a single linear layer followed by a log-softmax.
type LogReg struct {
	Weight *nn.Param // classes×in
	Bias   *nn.Param // 1×classes
}

// NewLogReg creates a classifier with a Xavier-uniform weight and zero bias.
func NewLogReg(inFeatures, classes int, rng *rand.Rand) *LogReg {
	l := &LogReg{
		Weight: nn.NewParam("fc.weight", classes, inFeatures),
		Bias:   nn.NewParam("fc.bias", 1, classes),
	}
	nn.XavierUniform(l.Weight.Value, inFeatures, classes, 1.0, rng)
	return l
}

// Params returns the weight and bias.
func (l *LogReg) Params() []*nn.Param {
	return []*nn.Param{l.Weight, l.Bias}
}

// Logits returns x·Wᵀ + b.
func (l *LogReg) Logits(x mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Mul(x, l.Weight.Value.T())
	bias := l.Bias.Value.RawRowView(0)
	rows, _ := out.Dims()
	for i := 0; i < rows; i++ {
		row := out.RawRowView(i)
		for j := range row {
			row[j] += bias[j]
		}
	}
	return &out
}

// Forward returns row-wise log-probabilities.
func (l *LogReg) Forward(x mat.Matrix) *mat.Dense {
	return nn.LogSoftmax(l.Logits(x))
}

// Backward accumulates parameter gradients for dLogits, the gradient with
// respect to the pre-softmax logits.
func (l *LogReg) Backward(x mat.Matrix, dLogits *mat.Dense) {
	var dW mat.Dense
	dW.Mul(dLogits.T(), x)
	l.Weight.Grad.Add(l.Weight.Grad, &dW)

	dBias := l.Bias.Grad.RawRowView(0)
	rows, _ := dLogits.Dims()
	for i := 0; i < rows; i++ {
		for j, v := range dLogits.RawRowView(i) {
			dBias[j] += v
		}
	}
}

// Predict returns the arg-max class of every row.
func (l *LogReg) Predict(x mat.Matrix) []int {
	logits := l.Logits(x)
	rows, _ := logits.Dims()
	preds := make([]int, rows)
	for i := 0; i < rows; i++ {
		best := 0
		row := logits.RawRowView(i)
		for j, v := range row {
			if v > row[best] {
				best = j
			}
		}
		preds[i] = best
	}
	return preds
}
