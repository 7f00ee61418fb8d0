package trainer

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/cnclabs/mvgrl/internal/config"
	"github.com/cnclabs/mvgrl/internal/models/mvgrl"
	"github.com/cnclabs/mvgrl/pkg/graph"
	"github.com/cnclabs/mvgrl/pkg/nn"
)

func tinyGraph(t *testing.T, nodes, features int) *graph.Graph {
	t.Helper()
	raw := graph.Synthetic(graph.SyntheticOptions{
		Nodes:    nodes,
		Classes:  2,
		Features: features,
		PIn:      0.4,
		POut:     0.05,
		PActive:  0.6,
		Seed:     3,
	})
	g, err := graph.Build(raw, graph.DefaultOptions())
	require.NoError(t, err)
	return g
}

func tinyConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Dataset = "synthetic"
	cfg.Train.Epochs = 6
	cfg.Train.Patience = 2
	cfg.Train.HiddenUnits = 4
	cfg.Train.SampleSize = 20
	cfg.Train.SigSampleSize = 8
	cfg.Train.BatchSize = 2
	cfg.Train.CheckpointPath = filepath.Join(t.TempDir(), "model.ckpt")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestEarlyStopperStopsPatienceAfterBest(t *testing.T) {
	s := NewEarlyStopper(2)
	losses := []float64{3, 2, 2.5, 2.4, 1}
	var stopAt int
	for epoch, l := range losses {
		_, stop := s.Observe(epoch, l)
		if stop {
			stopAt = epoch
			break
		}
	}
	best, loss := s.Best()
	assert.Equal(t, 1, best)
	assert.Equal(t, 2.0, loss)
	assert.Equal(t, best+2, stopAt)

	// Equal losses do not count as improvement.
	s = NewEarlyStopper(1)
	improved, _ := s.Observe(0, 1)
	assert.True(t, improved)
	improved, stop := s.Observe(1, 1)
	assert.False(t, improved)
	assert.True(t, stop)

	s = NewEarlyStopper(3)
	s.Observe(0, math.NaN())
	best, _ = s.Best()
	assert.Equal(t, -1, best)
}

func TestGatherBlock(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})
	ids := []int{2, 0}

	diag := gatherBlock(a, ids, config.GatherDiagonal)
	assert.Equal(t, []float64{9, 1, 9, 1}, diag.RawMatrix().Data)

	full := gatherBlock(a, ids, config.GatherFull)
	assert.Equal(t, []float64{9, 7, 3, 1}, full.RawMatrix().Data)

	rows := gatherRows(a, ids)
	assert.Equal(t, []float64{7, 8, 9, 1, 2, 3}, rows.RawMatrix().Data)
}

type fixedSelector struct {
	ids []int
}

func (f fixedSelector) SelectWindow(_ int, _ *mat.Dense, _ mat.Matrix, _ int) []int {
	return f.ids
}

// containsRow reports whether some row of m among the first n equals row.
func containsRow(m *mat.Dense, n int, row []float64) bool {
	for i := 0; i < n; i++ {
		if floatsEqual(m.RawRowView(i), row) {
			return true
		}
	}
	return false
}

func floatsEqual(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return len(a) == len(b)
}

func TestSampleBatch(t *testing.T) {
	g := tinyGraph(t, 30, 6)
	cfg := tinyConfig(t).Train
	cfg.SampleSize = 10
	cfg.SigSampleSize = 3
	sel := fixedSelector{ids: []int{4, 1, 7}}

	for _, source := range []string{config.NegativeWindow, config.NegativeSampled} {
		cfg.NegativeSource = source
		b := sampleBatch(g, cfg, sel, rand.New(rand.NewSource(1)))
		require.Len(t, b.Features, cfg.BatchSize)

		for i, off := range b.Offsets {
			assert.GreaterOrEqual(t, off, 0)
			assert.LessOrEqual(t, off, g.NumNodes()-cfg.SampleSize)

			w := sliceWindow(g, off, cfg.SampleSize)
			r, c := b.Features[i].Dims()
			assert.Equal(t, 3, r)
			assert.Equal(t, g.NumFeatures(), c)
			for k, id := range sel.ids {
				assert.Equal(t, w.features.RawRowView(id), b.Features[i].RawRowView(k))
				for row := 0; row < 3; row++ {
					assert.Equal(t, w.adj.At(id, id), b.Adj[i].At(row, k))
				}
			}

			// Negatives are a permutation of a fixed prefix.
			src, n := w.features, cfg.SigSampleSize
			if source == config.NegativeSampled {
				src = b.Features[i]
			}
			for row := 0; row < 3; row++ {
				assert.True(t, containsRow(src, n, b.Shuffled[i].RawRowView(row)))
			}
		}
	}
}

func TestStepOnMinimalGraph(t *testing.T) {
	g := tinyGraph(t, 10, 2)
	cfg := tinyConfig(t)
	cfg.Train.SampleSize = 10
	cfg.Train.SigSampleSize = 5
	cfg.Train.BatchSize = 1

	tr, err := New(cfg, g, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, config.DeviceCPU, tr.Device())

	loss, logits := tr.Step()
	assert.False(t, math.IsNaN(loss) || math.IsInf(loss, 0))
	r, c := logits.Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 20, c)
}

func TestNewRejectsOversizedWindow(t *testing.T) {
	g := tinyGraph(t, 10, 2)
	cfg := tinyConfig(t)
	_, err := New(cfg, g, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestFitRestoresBestEpoch(t *testing.T) {
	g := tinyGraph(t, 30, 6)
	cfg := tinyConfig(t)
	cfg.Train.Epochs = 500
	cfg.Train.Patience = 1

	tr, err := New(cfg, g, rand.New(rand.NewSource(2)))
	require.NoError(t, err)
	require.NoError(t, tr.Fit(context.Background()))

	// Sampled windows make the loss noisy, so a patience of one stops
	// long before the epoch limit.
	require.Less(t, len(tr.Losses), cfg.Train.Epochs)
	assert.FileExists(t, cfg.Train.CheckpointPath)

	minLoss, minEpoch := math.Inf(1), -1
	for epoch, l := range tr.Losses {
		if l < minLoss {
			minLoss, minEpoch = l, epoch
		}
	}
	assert.Equal(t, minEpoch, tr.BestEpoch)
	assert.Equal(t, minLoss, tr.BestLoss)
	assert.Equal(t, tr.BestEpoch+cfg.Train.Patience, len(tr.Losses)-1)

	// The parameters in use are the ones of the best epoch.
	saved := mvgrl.New(g.NumFeatures(), cfg.Train.HiddenUnits, rand.New(rand.NewSource(99))).Params()
	require.NoError(t, nn.LoadParams(cfg.Train.CheckpointPath, saved))
	for i, p := range tr.Model.Params() {
		assert.True(t, mat.Equal(saved[i].Value, p.Value), p.Name)
	}

	embeds := tr.Embed()
	r, c := embeds.Dims()
	assert.Equal(t, g.NumNodes(), r)
	assert.Equal(t, cfg.Train.HiddenUnits, c)

	trainEmbs, trainLabels, testEmbs, testLabels := tr.Split(embeds)
	r, _ = trainEmbs.Dims()
	assert.Equal(t, len(g.TrainIdx), r)
	assert.Len(t, trainLabels, len(g.TrainIdx))
	r, _ = testEmbs.Dims()
	assert.Equal(t, len(g.TestIdx), r)
	assert.Len(t, testLabels, len(g.TestIdx))
	assert.Equal(t, embeds.RawRowView(g.TrainIdx[0]), trainEmbs.RawRowView(0))
}

func TestFitHonoursCancellation(t *testing.T) {
	g := tinyGraph(t, 30, 6)
	cfg := tinyConfig(t)
	tr, err := New(cfg, g, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tr.Fit(ctx), context.Canceled)
	assert.Empty(t, tr.Losses)
}

func TestTrainingIsDeterministic(t *testing.T) {
	g := tinyGraph(t, 30, 6)
	run := func(cacheSize int) []float64 {
		cfg := tinyConfig(t)
		cfg.Attention.CacheSize = cacheSize
		tr, err := New(cfg, g, rand.New(rand.NewSource(5)))
		require.NoError(t, err)
		losses := make([]float64, 3)
		for i := range losses {
			losses[i], _ = tr.Step()
		}
		return losses
	}

	first := run(16)
	assert.Equal(t, first, run(16))
	assert.Equal(t, first, run(0))
}
