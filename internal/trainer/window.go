package trainer

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/cnclabs/mvgrl/internal/config"
	"github.com/cnclabs/mvgrl/pkg/graph"
)

// windowSelector picks the significant nodes of the window starting at
// offset.
type windowSelector interface {
	SelectWindow(offset int, x *mat.Dense, adj mat.Matrix, k int) []int
}

// Batch is one epoch's training input: batch_size sampled subgraphs of
// sig_sample_size nodes each.
type Batch struct {
	Offsets  []int
	Features []*mat.Dense
	Shuffled []*mat.Dense
	Adj      []mat.Matrix
	Diff     []mat.Matrix
}

// window is an unsampled sample_size slice of the full graph.
type window struct {
	offset   int
	original *mat.Dense
	adj      *mat.Dense
	diff     *mat.Dense
	features *mat.Dense
}

func sliceWindow(g *graph.Graph, offset, size int) *window {
	_, f := g.Features.Dims()
	end := offset + size
	return &window{
		offset:   offset,
		original: mat.DenseCopyOf(g.OriginalAdj.Slice(offset, end, offset, end)),
		adj:      mat.DenseCopyOf(g.Adj.Slice(offset, end, offset, end)),
		diff:     mat.DenseCopyOf(g.Diff.Slice(offset, end, offset, end)),
		features: mat.DenseCopyOf(g.Features.Slice(offset, end, 0, f)),
	}
}

// sampleBatch draws the windows, the shared negative permutation and the
// significant nodes of one epoch.
func sampleBatch(g *graph.Graph, cfg config.TrainConfig, sel windowSelector, rng *rand.Rand) *Batch {
	n := g.NumNodes()
	b := &Batch{
		Offsets:  make([]int, cfg.BatchSize),
		Features: make([]*mat.Dense, cfg.BatchSize),
		Shuffled: make([]*mat.Dense, cfg.BatchSize),
		Adj:      make([]mat.Matrix, cfg.BatchSize),
		Diff:     make([]mat.Matrix, cfg.BatchSize),
	}

	windows := make([]*window, cfg.BatchSize)
	for i := range windows {
		b.Offsets[i] = rng.Intn(n - cfg.SampleSize + 1)
		windows[i] = sliceWindow(g, b.Offsets[i], cfg.SampleSize)
	}

	perm := rng.Perm(cfg.SigSampleSize)

	for i, w := range windows {
		ids := sel.SelectWindow(w.offset, w.features, w.original, cfg.SigSampleSize)
		b.Features[i] = gatherRows(w.features, ids)
		b.Adj[i] = gatherBlock(w.adj, ids, cfg.GatherMode)
		b.Diff[i] = gatherBlock(w.diff, ids, cfg.GatherMode)

		if cfg.NegativeSource == config.NegativeSampled {
			b.Shuffled[i] = gatherRows(b.Features[i], perm)
		} else {
			b.Shuffled[i] = gatherRows(w.features, perm)
		}
	}
	return b
}

// gatherRows returns the rows of m at ids, in order.
func gatherRows(m *mat.Dense, ids []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(ids), c, nil)
	for r, id := range ids {
		out.SetRow(r, m.RawRowView(id))
	}
	return out
}

// gatherBlock returns the K×K block of a at ids. In diagonal mode every row
// is the diagonal a[id_k][id_k]; in full mode the block is a[id_r][id_k].
func gatherBlock(a *mat.Dense, ids []int, mode string) *mat.Dense {
	k := len(ids)
	out := mat.NewDense(k, k, nil)
	if mode == config.GatherFull {
		for r, ir := range ids {
			row := out.RawRowView(r)
			for c, ic := range ids {
				row[c] = a.At(ir, ic)
			}
		}
		return out
	}

	diag := make([]float64, k)
	for c, id := range ids {
		diag[c] = a.At(id, id)
	}
	for r := 0; r < k; r++ {
		out.SetRow(r, diag)
	}
	return out
}
