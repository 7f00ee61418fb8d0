package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/mvgrl/internal/config"
	"github.com/cnclabs/mvgrl/internal/results"
	"github.com/cnclabs/mvgrl/pkg/graph"
)

func smallConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Dataset = "synthetic"
	cfg.Runs = 2
	cfg.Train.Epochs = 3
	cfg.Train.HiddenUnits = 4
	cfg.Train.SampleSize = 40
	cfg.Train.SigSampleSize = 10
	cfg.Train.BatchSize = 2
	cfg.Train.CheckpointPath = filepath.Join(dir, "model.ckpt")
	cfg.Probe.Trials = 2
	cfg.Probe.Steps = 20
	cfg.Results.DBPath = filepath.Join(dir, "runs.db")
	cfg.Results.PlotPath = filepath.Join(dir, "loss.png")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunTrainSynthetic(t *testing.T) {
	cfg := smallConfig(t)
	var out bytes.Buffer
	require.NoError(t, runTrain(context.Background(), cfg, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, cfg.Runs)
	for _, line := range lines {
		fields := strings.Fields(line)
		require.Len(t, fields, 2)
		mean, err := strconv.ParseFloat(fields[0], 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, mean, 0.0)
		assert.LessOrEqual(t, mean, 100.0)
	}

	store, err := results.Open(cfg.Results.DBPath)
	require.NoError(t, err)
	defer store.Close()
	summaries, err := store.Summaries(context.Background(), "synthetic")
	require.NoError(t, err)
	assert.Len(t, summaries, cfg.Runs)

	assert.FileExists(t, plotPath(cfg.Results.PlotPath, 0, cfg.Runs))
	assert.FileExists(t, plotPath(cfg.Results.PlotPath, 1, cfg.Runs))
}

func TestRunTrainFromDirectory(t *testing.T) {
	dir := t.TempDir()
	opts := graph.DefaultSyntheticOptions()
	opts.Nodes = 60
	require.NoError(t, graph.WriteRaw(filepath.Join(dir, "cora"), graph.Synthetic(opts)))

	cfg := smallConfig(t)
	cfg.Dataset = "cora"
	cfg.DataDir = dir
	cfg.Runs = 1
	cfg.Results = config.ResultsConfig{}

	var out bytes.Buffer
	require.NoError(t, runTrain(context.Background(), cfg, &out))
	assert.Len(t, strings.Fields(out.String()), 2)
}

func TestRunTrainRejectsOversizedWindow(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Train.SampleSize = 1000
	cfg.Train.SigSampleSize = 10
	assert.Error(t, runTrain(context.Background(), cfg, &bytes.Buffer{}))
}

func TestApplyTrainFlagsOverridesOnlySetFlags(t *testing.T) {
	require.NoError(t, trainCmd.Flags().Set("negative-source", config.NegativeSampled))
	require.NoError(t, trainCmd.Flags().Set("gather-mode", config.GatherFull))

	cfg := config.DefaultConfig()
	cfg.Train.Epochs = 7
	applyTrainFlags(trainCmd, cfg)

	assert.Equal(t, config.NegativeSampled, cfg.Train.NegativeSource)
	assert.Equal(t, config.GatherFull, cfg.Train.GatherMode)
	assert.Equal(t, 7, cfg.Train.Epochs)
	assert.NoError(t, cfg.Validate())
}

func TestPlotPath(t *testing.T) {
	assert.Equal(t, "loss.png", plotPath("loss.png", 0, 1))
	assert.Equal(t, "out/loss-3.png", plotPath("out/loss.png", 3, 5))
}
