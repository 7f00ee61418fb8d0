package results

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	run := NewRun("synthetic", 7)
	run.Epochs = 3
	run.BestEpoch = 1
	run.BestLoss = 0.5
	run.MeanAcc = 80
	run.StdAcc = 1.5
	run.Accuracies = []float64{79, 81, 80}
	run.Losses = []float64{0.7, 0.5, 0.6}
	require.NoError(t, store.Save(ctx, run))

	got, err := store.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "synthetic", got.Dataset)
	assert.Equal(t, int64(7), got.Seed)
	assert.Equal(t, 1, got.BestEpoch)
	assert.Equal(t, run.Accuracies, got.Accuracies)
	assert.Equal(t, run.Losses, got.Losses)

	second := NewRun("synthetic", 8)
	require.NoError(t, store.Save(ctx, second))
	assert.NotEqual(t, run.ID, second.ID)

	summaries, err := store.Summaries(ctx, "synthetic")
	require.NoError(t, err)
	assert.Len(t, summaries, 2)

	// Duplicate ids are rejected.
	assert.Error(t, store.Save(ctx, run))

	_, err = store.Get(ctx, "missing")
	assert.Error(t, err)
}

func TestPlotLoss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loss.png")
	require.NoError(t, PlotLoss(path, "synthetic", []float64{0.7, 0.6, 0.65}, 1))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Error(t, PlotLoss(path, "empty", nil, 0))

	diverged := filepath.Join(t.TempDir(), "diverged.png")
	require.NoError(t, PlotLoss(diverged, "diverged", []float64{0.7, math.NaN(), 0.5, math.Inf(1)}, 2))
	assert.FileExists(t, diverged)
	assert.Error(t, PlotLoss(diverged, "all nan", []float64{math.NaN(), math.Inf(-1)}, -1))
}
