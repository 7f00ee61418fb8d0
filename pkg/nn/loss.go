package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// BCEWithLogits returns the mean binary cross-entropy of sigmoid(logits)
// against labels, and the gradient of that mean with respect to logits.
func BCEWithLogits(logits, labels *mat.Dense) (float64, *mat.Dense) {
	r, c := logits.Dims()
	if lr, lc := labels.Dims(); lr != r || lc != c {
		panic("nn: BCEWithLogits shape mismatch")
	}
	n := float64(r * c)
	grad := mat.NewDense(r, c, nil)
	loss := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			x := logits.At(i, j)
			y := labels.At(i, j)
			loss += math.Max(x, 0) - x*y + math.Log1p(math.Exp(-math.Abs(x)))
			grad.Set(i, j, (Sigmoid(x)-y)/n)
		}
	}
	return loss / n, grad
}

// LogSoftmax applies a row-wise log-softmax to m.
func LogSoftmax(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		maxV := math.Inf(-1)
		for _, v := range row {
			maxV = math.Max(maxV, v)
		}
		sum := 0.0
		for _, v := range row {
			sum += math.Exp(v - maxV)
		}
		lse := maxV + math.Log(sum)
		for j, v := range row {
			out.Set(i, j, v-lse)
		}
	}
	return out
}

// NLLLoss returns the mean negative log-likelihood of the target classes
// given row-wise log-probabilities, plus the gradient of the corresponding
// softmax cross-entropy with respect to the pre-softmax logits.
func NLLLoss(logProbs *mat.Dense, targets []int) (float64, *mat.Dense) {
	r, c := logProbs.Dims()
	if len(targets) != r {
		panic("nn: NLLLoss target count mismatch")
	}
	n := float64(r)
	grad := mat.NewDense(r, c, nil)
	loss := 0.0
	for i := 0; i < r; i++ {
		loss -= logProbs.At(i, targets[i])
		for j := 0; j < c; j++ {
			p := math.Exp(logProbs.At(i, j))
			if j == targets[i] {
				p -= 1
			}
			grad.Set(i, j, p/n)
		}
	}
	return loss / n, grad
}
