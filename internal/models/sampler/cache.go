package sampler

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

type windowKey struct {
	offset, size, k int
}

// CachedSelector memoises selections per window. A window is identified by
// its start offset in the full graph and its size, so the wrapped Selector
// must be deterministic for a given window (true for the frozen attention
// layer).
type CachedSelector struct {
	inner Selector
	cache *lru.Cache[windowKey, []int]

	hits, misses int
}

// NewCachedSelector wraps inner with an LRU of size entries.
func NewCachedSelector(inner Selector, size int) (*CachedSelector, error) {
	cache, err := lru.New[windowKey, []int](size)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create selection cache of size %d", size)
	}
	return &CachedSelector{inner: inner, cache: cache}, nil
}

// SelectWindow returns the selection for the window starting at offset.
func (c *CachedSelector) SelectWindow(offset int, x *mat.Dense, adj mat.Matrix, k int) []int {
	n, _ := x.Dims()
	key := windowKey{offset: offset, size: n, k: k}
	if ids, ok := c.cache.Get(key); ok {
		c.hits++
		return append([]int(nil), ids...)
	}
	c.misses++
	ids := c.inner.Select(x, adj, k)
	c.cache.Add(key, append([]int(nil), ids...))
	return ids
}

// Stats reports cache hits and misses.
func (c *CachedSelector) Stats() (hits, misses int) {
	return c.hits, c.misses
}
