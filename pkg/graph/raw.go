package graph

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Edge is a weighted connection between two node indices.
type Edge struct {
	Src, Dst int
	Weight   float64
}

// Split holds train/validation/test node indices.
type Split struct {
	Train, Val, Test []int
}

// Raw is a dataset before preprocessing.
type Raw struct {
	Name       string
	Names      []string
	Edges      []Edge
	Undirected bool
	Features   *mat.Dense
	Labels     []int
	Split      *Split
}

// NumNodes returns the number of named nodes.
func (r *Raw) NumNodes() int {
	return len(r.Names)
}

// NumClasses returns one more than the largest label.
func (r *Raw) NumClasses() int {
	classes := 0
	for _, l := range r.Labels {
		if l+1 > classes {
			classes = l + 1
		}
	}
	return classes
}

// Adjacency materialises the edge list as a dense N×N matrix. Repeated
// edges keep the last weight.
func (r *Raw) Adjacency() *mat.Dense {
	n := r.NumNodes()
	a := mat.NewDense(n, n, nil)
	for _, e := range r.Edges {
		a.Set(e.Src, e.Dst, e.Weight)
		if r.Undirected {
			a.Set(e.Dst, e.Src, e.Weight)
		}
	}
	return a
}

func (r *Raw) validate() error {
	n := r.NumNodes()
	if n == 0 {
		return errors.Errorf("dataset %q has no nodes", r.Name)
	}
	if r.Features == nil {
		return errors.Errorf("dataset %q has no features", r.Name)
	}
	if fr, _ := r.Features.Dims(); fr != n {
		return errors.Errorf("dataset %q: %d feature rows for %d nodes", r.Name, fr, n)
	}
	if len(r.Labels) != n {
		return errors.Errorf("dataset %q: %d labels for %d nodes", r.Name, len(r.Labels), n)
	}
	for _, e := range r.Edges {
		if e.Src < 0 || e.Src >= n || e.Dst < 0 || e.Dst >= n {
			return errors.Errorf("dataset %q: edge %d-%d out of range", r.Name, e.Src, e.Dst)
		}
	}
	return nil
}
