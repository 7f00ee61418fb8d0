// Package sampler picks the significant nodes of a graph window by the
// attention mass they receive from their neighbours.
package sampler

import (
	"math"
	"math/rand"
	"sort"

	"github.com/cnclabs/mvgrl/pkg/nn"
	"github.com/viterin/vek"
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultAlpha is the negative slope of the attention LeakyReLU.
	DefaultAlpha = 0.2
	// maskedLogit replaces the logits of non-edges before the softmax.
	maskedLogit = -9e15
	xavierGain  = 1.414
)

// Selector chooses k node indices of a window.
type Selector interface {
	Select(x *mat.Dense, adj mat.Matrix, k int) []int
}

// GraphAttentionLayer scores nodes with single-head graph attention. Its
// parameters are not trained: selection uses the initial projection.
type GraphAttentionLayer struct {
	W *nn.Param // in×out
	A *nn.Param // 2·out×1

	alpha float64
}

var _ Selector = (*GraphAttentionLayer)(nil)

// NewGraphAttentionLayer creates the layer with Xavier-uniform weights
// (gain 1.414).
func NewGraphAttentionLayer(inFeatures, outFeatures int, alpha float64, rng *rand.Rand) *GraphAttentionLayer {
	l := &GraphAttentionLayer{
		W:     nn.NewParam("attn.W", inFeatures, outFeatures),
		A:     nn.NewParam("attn.a", 2*outFeatures, 1),
		alpha: alpha,
	}
	nn.XavierUniform(l.W.Value, outFeatures, inFeatures, xavierGain, rng)
	nn.XavierUniform(l.A.Value, 1, 2*outFeatures, xavierGain, rng)
	return l
}

// Params returns the layer's parameters.
func (l *GraphAttentionLayer) Params() []*nn.Param {
	return []*nn.Param{l.W, l.A}
}

// Attention returns the row-softmaxed attention matrix of the window:
// e[i,j] = LeakyReLU(a₁·h_i + a₂·h_j) with h = X·W, masked to the edges
// of adj.
func (l *GraphAttentionLayer) Attention(x *mat.Dense, adj mat.Matrix) *mat.Dense {
	var h mat.Dense
	h.Mul(x, l.W.Value)
	n, out := h.Dims()
	if r, c := adj.Dims(); r != n || c != n {
		panic("sampler: adjacency does not match feature rows")
	}

	a := l.A.Data()
	src := make([]float64, n)
	dst := make([]float64, n)
	for i := 0; i < n; i++ {
		row := h.RawRowView(i)
		src[i] = vek.Dot(row, a[:out])
		dst[i] = vek.Dot(row, a[out:])
	}

	att := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		row := att.RawRowView(i)
		maxV := math.Inf(-1)
		for j := 0; j < n; j++ {
			e := maskedLogit
			if adj.At(i, j) > 0 {
				e = nn.LeakyReLU(src[i]+dst[j], l.alpha)
			}
			row[j] = e
			maxV = math.Max(maxV, e)
		}
		sum := 0.0
		for j := range row {
			row[j] = math.Exp(row[j] - maxV)
			sum += row[j]
		}
		vek.DivNumber_Inplace(row, sum)
	}
	return att
}

// Significance sums the attention each node receives over all rows.
func (l *GraphAttentionLayer) Significance(x *mat.Dense, adj mat.Matrix) []float64 {
	att := l.Attention(x, adj)
	n, _ := att.Dims()
	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		vek.Add_Inplace(scores, att.RawRowView(i))
	}
	return scores
}

// Select returns the k nodes with the highest significance, highest first.
// Ties go to the lower index.
func (l *GraphAttentionLayer) Select(x *mat.Dense, adj mat.Matrix, k int) []int {
	return TopK(l.Significance(x, adj), k)
}

// TopK returns the indices of the k largest scores in descending order.
func TopK(scores []float64, k int) []int {
	if k > len(scores) {
		panic("sampler: k exceeds the number of nodes")
	}
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	return idx[:k:k]
}
