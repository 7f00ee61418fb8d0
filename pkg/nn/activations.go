package nn

import (
	"math"
)

// Sigmoid is the numerically stable logistic function.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1.0 + e)
}

// LeakyReLU returns x for positive inputs and alpha*x otherwise.
func LeakyReLU(x, alpha float64) float64 {
	if x > 0 {
		return x
	}
	return alpha * x
}

// PReLU is LeakyReLU with a learned slope.
func PReLU(x, slope float64) float64 {
	return LeakyReLU(x, slope)
}
