package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// XavierUniform fills m with U(-b, b), b = gain*sqrt(6/(fanIn+fanOut)).
func XavierUniform(m *mat.Dense, fanIn, fanOut int, gain float64, rng *rand.Rand) {
	bound := gain * math.Sqrt(6.0/float64(fanIn+fanOut))
	data := m.RawMatrix().Data
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * bound
	}
}
