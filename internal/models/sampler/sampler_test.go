package sampler

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func fullyConnected(n int) *mat.Dense {
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, 1)
		}
	}
	return a
}

func uniformFeatures(n, f int) *mat.Dense {
	x := mat.NewDense(n, f, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < f; j++ {
			x.Set(i, j, 0.5)
		}
	}
	return x
}

func TestSelectUniformGraph(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	layer := NewGraphAttentionLayer(4, 8, DefaultAlpha, rng)

	for _, k := range []int{1, 5, 10} {
		ids := layer.Select(uniformFeatures(10, 4), fullyConnected(10), k)
		require.Len(t, ids, k)
		seen := map[int]bool{}
		for _, id := range ids {
			assert.False(t, seen[id], "repeated index %d", id)
			assert.GreaterOrEqual(t, id, 0)
			assert.Less(t, id, 10)
			seen[id] = true
		}
	}
}

func TestAttentionRowsAreDistributions(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	layer := NewGraphAttentionLayer(3, 5, DefaultAlpha, rng)
	x := mat.NewDense(4, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		1, 1, 1,
	})
	adj := mat.NewDense(4, 4, []float64{
		1, 1, 0, 0,
		1, 1, 1, 0,
		0, 1, 1, 0,
		0, 0, 0, 0, // isolated: uniform over every node
	})
	att := layer.Attention(x, adj)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, 1.0, mat.Sum(att.RowView(i)), 1e-12)
	}
	assert.Zero(t, att.At(0, 2), "non-edges get no attention")
	assert.InDelta(t, 0.25, att.At(3, 0), 1e-12)

	scores := layer.Significance(x, adj)
	total := 0.0
	for _, s := range scores {
		total += s
	}
	assert.InDelta(t, 4.0, total, 1e-9)
}

func TestSelectPrefersReceivedAttention(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	layer := NewGraphAttentionLayer(2, 4, DefaultAlpha, rng)
	// Star graph: every leaf only attends to the hub (and itself).
	n := 6
	adj := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		adj.Set(i, i, 1)
		adj.Set(i, 0, 1)
		adj.Set(0, i, 1)
	}
	ids := layer.Select(uniformFeatures(n, 2), adj, 1)
	assert.Equal(t, []int{0}, ids)
}

func TestTopK(t *testing.T) {
	assert.Equal(t, []int{2, 0}, TopK([]float64{0.5, 0.1, 0.9, 0.5}, 2))
	assert.Equal(t, []int{0, 3}, TopK([]float64{0.5, 0.1, 0.1, 0.5}, 2))
	assert.Panics(t, func() { TopK([]float64{1}, 2) })
}

type countingSelector struct {
	calls int
}

func (c *countingSelector) Select(x *mat.Dense, _ mat.Matrix, k int) []int {
	c.calls++
	return TopK(make([]float64, x.RawMatrix().Rows), k)
}

func TestCachedSelector(t *testing.T) {
	inner := &countingSelector{}
	cached, err := NewCachedSelector(inner, 2)
	require.NoError(t, err)

	x := uniformFeatures(5, 2)
	adj := fullyConnected(5)
	first := cached.SelectWindow(3, x, adj, 2)
	first[0] = 99 // callers may scribble on the result
	second := cached.SelectWindow(3, x, adj, 2)
	assert.Equal(t, []int{0, 1}, second)
	assert.Equal(t, 1, inner.calls)

	cached.SelectWindow(4, x, adj, 2)
	cached.SelectWindow(3, x, adj, 3)
	assert.Equal(t, 3, inner.calls)
	hits, misses := cached.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 3, misses)

	_, err = NewCachedSelector(inner, 0)
	assert.Error(t, err)
}
