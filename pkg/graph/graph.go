// Package graph loads node-classification datasets and turns them into the
// three adjacency views the contrastive model trains on: the raw structural
// adjacency, the symmetric-normalised adjacency with self loops, and the
// personalised-PageRank diffusion.
package graph

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Graph is a preprocessed dataset. Every matrix shares the same node order.
type Graph struct {
	Name string

	OriginalAdj *mat.Dense // N×N raw adjacency
	Adj         *mat.Dense // N×N  D^-1/2 (A+I) D^-1/2
	Diff        *mat.Dense // N×N  PPR diffusion
	Features    *mat.Dense // N×F  row-normalised

	Labels     []int
	NumClasses int

	TrainIdx []int
	ValIdx   []int
	TestIdx  []int

	NodeNames []string
}

// NumNodes returns N.
func (g *Graph) NumNodes() int {
	n, _ := g.Features.Dims()
	return n
}

// NumFeatures returns F.
func (g *Graph) NumFeatures() int {
	_, f := g.Features.Dims()
	return f
}

// Validate checks that every component agrees on the node count and that
// split indices and labels are in range.
func (g *Graph) Validate() error {
	if g.Features == nil || g.OriginalAdj == nil || g.Adj == nil || g.Diff == nil {
		return errors.Errorf("graph %q: missing matrices", g.Name)
	}
	n := g.NumNodes()
	for name, m := range map[string]*mat.Dense{"original adjacency": g.OriginalAdj, "adjacency": g.Adj, "diffusion": g.Diff} {
		r, c := m.Dims()
		if r != n || c != n {
			return errors.Errorf("graph %q: %s is %dx%d, want %dx%d", g.Name, name, r, c, n, n)
		}
	}
	if len(g.Labels) != n {
		return errors.Errorf("graph %q: %d labels for %d nodes", g.Name, len(g.Labels), n)
	}
	for i, l := range g.Labels {
		if l < 0 || l >= g.NumClasses {
			return errors.Errorf("graph %q: node %d has label %d outside [0,%d)", g.Name, i, l, g.NumClasses)
		}
	}
	for name, idx := range map[string][]int{"train": g.TrainIdx, "val": g.ValIdx, "test": g.TestIdx} {
		for _, i := range idx {
			if i < 0 || i >= n {
				return errors.Errorf("graph %q: %s index %d out of range", g.Name, name, i)
			}
		}
	}
	return nil
}

// LabelsAt gathers the labels of the given nodes.
func (g *Graph) LabelsAt(idx []int) []int {
	out := make([]int, len(idx))
	for i, v := range idx {
		out[i] = g.Labels[v]
	}
	return out
}
