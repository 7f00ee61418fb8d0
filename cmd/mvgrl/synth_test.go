package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/mvgrl/pkg/graph"
)

func TestRunSynthWritesDataset(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "synthetic")
	opts := graph.DefaultSyntheticOptions()
	opts.Nodes = 40

	var out bytes.Buffer
	require.NoError(t, runSynth(dir, opts, &out))
	assert.Contains(t, out.String(), "# of nodes:\t\t40")

	raw, err := graph.LoadRaw(dir)
	require.NoError(t, err)
	assert.Equal(t, 40, raw.NumNodes())
}

func TestRunSynthRejectsEmptyShapes(t *testing.T) {
	for _, opts := range []graph.SyntheticOptions{
		{Nodes: 10, Classes: 2, Features: 0},
		{Nodes: 10, Classes: 0, Features: 4},
		{Nodes: 0, Classes: 2, Features: 4},
	} {
		dir := t.TempDir()
		assert.Error(t, runSynth(dir, opts, &bytes.Buffer{}))
		assert.NoFileExists(t, filepath.Join(dir, graph.FeaturesFile))
	}
}
