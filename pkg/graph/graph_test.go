package graph

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func pathGraph(n int) *mat.Dense {
	a := mat.NewDense(n, n, nil)
	for i := 0; i+1 < n; i++ {
		a.Set(i, i+1, 1)
		a.Set(i+1, i, 1)
	}
	return a
}

func TestNormalizeAdj(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{0, 1, 1, 0})
	norm := NormalizeAdj(a)
	// A+I is all ones, degrees are 2.
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, 0.5, norm.At(i, j), 1e-12)
		}
	}
}

func TestPPRDiffusion(t *testing.T) {
	diff, err := PPRDiffusion(pathGraph(5), 0.2)
	require.NoError(t, err)
	n, _ := diff.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			assert.Greater(t, diff.At(i, j), 0.0, "connected graph diffuses everywhere")
			assert.InDelta(t, diff.At(i, j), diff.At(j, i), 1e-9)
		}
		// Mass decays with distance from the source node.
		if i+1 < n {
			assert.Greater(t, diff.At(i, i), diff.At(i, i+1))
		}
	}

	_, err = PPRDiffusion(pathGraph(3), 1.5)
	assert.Error(t, err)
}

func TestSparsify(t *testing.T) {
	m := mat.NewDense(1, 3, []float64{0.1, 0.01, 0.5})
	Sparsify(m, 0.05)
	assert.Equal(t, []float64{0.1, 0, 0.5}, m.RawRowView(0))
}

func TestRowNormalize(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 3, 0, 0})
	out := RowNormalize(m)
	assert.Equal(t, []float64{0.25, 0.75}, out.RawRowView(0))
	assert.Equal(t, []float64{0, 0}, out.RawRowView(1))
}

func TestPlanetoidSplitDisjoint(t *testing.T) {
	labels := make([]int, 200)
	for i := range labels {
		labels[i] = i % 4
	}
	split := PlanetoidSplit(labels, 4, 3)
	assert.Len(t, split.Train, 4*TrainPerClass)

	seen := map[int]bool{}
	for _, set := range [][]int{split.Train, split.Val, split.Test} {
		for _, v := range set {
			assert.False(t, seen[v], "node %d in two sets", v)
			seen[v] = true
		}
	}
	assert.NotEmpty(t, split.Val)
	assert.NotEmpty(t, split.Test)
}

func TestSyntheticBuild(t *testing.T) {
	opts := DefaultSyntheticOptions()
	opts.Nodes = 40
	raw := Synthetic(opts)
	g, err := Build(raw, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 40, g.NumNodes())
	assert.Equal(t, opts.Features, g.NumFeatures())
	assert.Equal(t, opts.Classes, g.NumClasses)
	require.NoError(t, g.Validate())

	for i := 0; i < g.NumNodes(); i++ {
		sum := mat.Sum(g.Features.RowView(i))
		assert.True(t, sum == 0 || math.Abs(sum-1) < 1e-9)
	}
}

func TestSyntheticOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultSyntheticOptions().Validate())

	for _, mutate := range []func(*SyntheticOptions){
		func(o *SyntheticOptions) { o.Nodes = 0 },
		func(o *SyntheticOptions) { o.Classes = -1 },
		func(o *SyntheticOptions) { o.Features = 0 },
	} {
		opts := DefaultSyntheticOptions()
		mutate(&opts)
		assert.Error(t, opts.Validate())
	}
}

func TestLoadKeepsStdoutClean(t *testing.T) {
	opts := DefaultSyntheticOptions()
	opts.Nodes = 20
	dir := filepath.Join(t.TempDir(), "quiet")
	require.NoError(t, WriteRaw(dir, Synthetic(opts)))

	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w
	g, loadErr := Load(dir, DefaultOptions())
	os.Stdout = stdout
	require.NoError(t, w.Close())

	printed, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, loadErr)
	assert.Equal(t, 20, g.NumNodes())
	assert.Empty(t, string(printed))
}

func TestWriteAndLoadRoundTrip(t *testing.T) {
	opts := DefaultSyntheticOptions()
	opts.Nodes = 30
	raw := Synthetic(opts)
	raw.Split = &Split{Train: []int{0, 1, 2}, Val: []int{3, 4}, Test: []int{5, 6, 7}}

	dir := filepath.Join(t.TempDir(), "tiny")
	require.NoError(t, WriteRaw(dir, raw))

	loaded, err := LoadRaw(dir)
	require.NoError(t, err)
	assert.Equal(t, "tiny", loaded.Name)
	assert.Equal(t, raw.Names, loaded.Names)
	assert.Equal(t, raw.Labels, loaded.Labels)
	assert.True(t, mat.Equal(raw.Features, loaded.Features))
	assert.True(t, mat.Equal(raw.Adjacency(), loaded.Adjacency()))
	assert.ElementsMatch(t, raw.Split.Train, loaded.Split.Train)
	assert.ElementsMatch(t, raw.Split.Test, loaded.Split.Test)

	g, err := Load(dir, DefaultOptions())
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{3, 4}, g.ValIdx)
}

func TestLoadRejectsUnknownNode(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FeaturesFile), []byte("a 1 0\nb 0 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, EdgesFile), []byte("a c\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, LabelsFile), []byte("a 0\nb 1\n"), 0o644))

	_, err := LoadRaw(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node")
}

func TestValidateCatchesMismatch(t *testing.T) {
	raw := Synthetic(SyntheticOptions{Nodes: 6, Classes: 2, Features: 4, PIn: 1, PActive: 0.5, Seed: 2})
	g, err := Build(raw, DefaultOptions())
	require.NoError(t, err)
	g.Labels = g.Labels[:3]
	assert.Error(t, g.Validate())
}
