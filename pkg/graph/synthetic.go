package graph

import (
	"math/rand"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// SyntheticOptions describes a stochastic block model with class-correlated
// bag-of-words features.
type SyntheticOptions struct {
	Nodes    int
	Classes  int
	Features int
	// PIn and POut are the intra- and inter-class edge probabilities.
	PIn, POut float64
	// PActive is the probability that a feature of the node's own class
	// block is set; other features fire with PActive/10.
	PActive float64
	Seed    int64
}

// DefaultSyntheticOptions returns a small graph suitable for smoke runs.
func DefaultSyntheticOptions() SyntheticOptions {
	return SyntheticOptions{
		Nodes:    300,
		Classes:  3,
		Features: 30,
		PIn:      0.05,
		POut:     0.005,
		PActive:  0.3,
		Seed:     1,
	}
}

// Validate rejects options Synthetic cannot generate from.
func (o SyntheticOptions) Validate() error {
	switch {
	case o.Nodes <= 0:
		return errors.Errorf("synthetic nodes must be positive, got %d", o.Nodes)
	case o.Classes <= 0:
		return errors.Errorf("synthetic classes must be positive, got %d", o.Classes)
	case o.Features <= 0:
		return errors.Errorf("synthetic features must be positive, got %d", o.Features)
	}
	return nil
}

// Synthetic generates a raw dataset. Labels are assigned round-robin so every
// class is populated.
func Synthetic(opts SyntheticOptions) *Raw {
	rng := rand.New(rand.NewSource(opts.Seed))
	classes := max(opts.Classes, 1)

	raw := &Raw{
		Name:       "synthetic",
		Names:      make([]string, opts.Nodes),
		Undirected: true,
		Features:   mat.NewDense(opts.Nodes, opts.Features, nil),
		Labels:     make([]int, opts.Nodes),
	}
	for i := 0; i < opts.Nodes; i++ {
		raw.Names[i] = strconv.Itoa(i)
		raw.Labels[i] = i % classes
	}

	for i := 0; i < opts.Nodes; i++ {
		for j := i + 1; j < opts.Nodes; j++ {
			p := opts.POut
			if raw.Labels[i] == raw.Labels[j] {
				p = opts.PIn
			}
			if rng.Float64() < p {
				raw.Edges = append(raw.Edges, Edge{Src: i, Dst: j, Weight: 1})
			}
		}
	}

	block := max(opts.Features/classes, 1)
	for i := 0; i < opts.Nodes; i++ {
		lo := (raw.Labels[i] * block) % opts.Features
		for j := 0; j < opts.Features; j++ {
			p := opts.PActive / 10
			if j >= lo && j < lo+block {
				p = opts.PActive
			}
			if rng.Float64() < p {
				raw.Features.Set(i, j, 1)
			}
		}
	}
	return raw
}
