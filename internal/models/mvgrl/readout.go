package mvgrl

import (
	"gonum.org/v1/gonum/mat"
)

// Readout mean-pools node embeddings into one summary row per batch element.
type Readout struct{}

var _ Pooler = Readout{}

// Forward returns a batch×features summary. With a batch×nodes mask the
// masked node sum is divided by the total mask mass across the whole batch,
// not per row.
func (Readout) Forward(h []*mat.Dense, mask *mat.Dense) *mat.Dense {
	_, cols := h[0].Dims()
	out := mat.NewDense(len(h), cols, nil)
	scale := readoutScales(h, mask)

	for b := range h {
		rows, _ := h[b].Dims()
		dst := out.RawRowView(b)
		for i := 0; i < rows; i++ {
			w := scale(b, i)
			for j, v := range h[b].RawRowView(i) {
				dst[j] += w * v
			}
		}
	}
	return out
}

// Backward spreads the summary gradient back over the nodes.
func (Readout) Backward(h []*mat.Dense, mask *mat.Dense, dSummary *mat.Dense) []*mat.Dense {
	scale := readoutScales(h, mask)
	grads := make([]*mat.Dense, len(h))
	for b := range h {
		rows, cols := h[b].Dims()
		grads[b] = mat.NewDense(rows, cols, nil)
		src := dSummary.RawRowView(b)
		for i := 0; i < rows; i++ {
			w := scale(b, i)
			dst := grads[b].RawRowView(i)
			for j := range dst {
				dst[j] = w * src[j]
			}
		}
	}
	return grads
}

// readoutScales returns the weight of node i of batch element b in the
// pooled summary.
func readoutScales(h []*mat.Dense, mask *mat.Dense) func(b, i int) float64 {
	if mask == nil {
		return func(b, _ int) float64 {
			rows, _ := h[b].Dims()
			return 1.0 / float64(rows)
		}
	}
	total := mat.Sum(mask)
	return func(b, i int) float64 {
		return mask.At(b, i) / total
	}
}
