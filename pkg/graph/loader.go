package graph

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

// Dataset file names inside a dataset directory.
const (
	EdgesFile    = "edges.txt"
	FeaturesFile = "features.txt"
	LabelsFile   = "labels.txt"
	SplitFile    = "split.txt"
)

// Monitor is how many lines are read between progress reports.
const Monitor = 10000

// loader maps node names to dense indices in first-seen order of the
// features file.
type loader struct {
	vertexHash map[string]int
	vertexKeys []string
}

func newLoader() *loader {
	return &loader{vertexHash: make(map[string]int)}
}

func (l *loader) lookup(name string) (int, bool) {
	vid, ok := l.vertexHash[name]
	return vid, ok
}

func (l *loader) getOrCreateVertex(name string) int {
	if vid, exists := l.vertexHash[name]; exists {
		return vid
	}
	vid := len(l.vertexKeys)
	l.vertexHash[name] = vid
	l.vertexKeys = append(l.vertexKeys, name)
	return vid
}

// LoadRaw reads the dataset directory dir. Node order is the order of the
// features file. The split file is optional.
func LoadRaw(dir string) (*Raw, error) {
	l := newLoader()
	raw := &Raw{Name: filepath.Base(dir), Undirected: true}

	var err error
	if raw.Features, err = l.loadFeatures(filepath.Join(dir, FeaturesFile)); err != nil {
		return nil, err
	}
	raw.Names = l.vertexKeys
	if raw.Edges, err = l.loadEdgeList(filepath.Join(dir, EdgesFile)); err != nil {
		return nil, err
	}
	if raw.Labels, err = l.loadLabels(filepath.Join(dir, LabelsFile)); err != nil {
		return nil, err
	}

	splitPath := filepath.Join(dir, SplitFile)
	if _, statErr := os.Stat(splitPath); statErr == nil {
		if raw.Split, err = l.loadSplit(splitPath); err != nil {
			return nil, err
		}
	} else {
		klog.V(1).Infof("no %s in %q, using a generated split", SplitFile, dir)
	}
	return raw, nil
}

// Load reads and preprocesses the dataset directory dir.
func Load(dir string, opts Options) (*Graph, error) {
	raw, err := LoadRaw(dir)
	if err != nil {
		return nil, err
	}
	klog.Infof("Graph loaded: %d vertices, %d edges, %d features, %d classes",
		raw.NumNodes(), len(raw.Edges), raw.Features.RawMatrix().Cols, raw.NumClasses())
	return Build(raw, opts)
}

// scanFields calls fn with the fields of every non-empty, non-comment line.
func scanFields(filename string, fn func(lineNo int, fields []string) error) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open file %s", filename)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<26)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(lineNo, strings.Fields(line)); err != nil {
			return errors.WithMessagef(err, "%s:%d", filename, lineNo)
		}
		if lineNo%Monitor == 0 {
			klog.V(2).Infof("%s: %d lines", filename, lineNo)
		}
	}
	return errors.Wrapf(scanner.Err(), "error reading file %s", filename)
}

func (l *loader) loadFeatures(filename string) (*mat.Dense, error) {
	var rows [][]float64
	dim := -1
	err := scanFields(filename, func(_ int, fields []string) error {
		if len(fields) < 2 {
			return errors.New("feature line needs a node and at least one value")
		}
		if _, dup := l.lookup(fields[0]); dup {
			return errors.Errorf("duplicate node %q", fields[0])
		}
		if dim == -1 {
			dim = len(fields) - 1
		} else if len(fields)-1 != dim {
			return errors.Errorf("node %q has %d features, want %d", fields[0], len(fields)-1, dim)
		}
		row := make([]float64, dim)
		for j, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid feature %q", f)
			}
			row[j] = v
		}
		l.getOrCreateVertex(fields[0])
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.Errorf("no features in %s", filename)
	}
	m := mat.NewDense(len(rows), dim, nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m, nil
}

// loadEdgeList reads "src dst [weight]" lines. A missing weight means 1.
func (l *loader) loadEdgeList(filename string) ([]Edge, error) {
	var edges []Edge
	err := scanFields(filename, func(_ int, fields []string) error {
		if len(fields) < 2 {
			return errors.New("edge line needs two nodes")
		}
		src, ok := l.lookup(fields[0])
		if !ok {
			return errors.Errorf("unknown node %q", fields[0])
		}
		dst, ok := l.lookup(fields[1])
		if !ok {
			return errors.Errorf("unknown node %q", fields[1])
		}
		weight := 1.0
		if len(fields) > 2 {
			w, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return errors.Wrapf(err, "invalid weight %q", fields[2])
			}
			weight = w
		}
		edges = append(edges, Edge{Src: src, Dst: dst, Weight: weight})
		return nil
	})
	return edges, err
}

func (l *loader) loadLabels(filename string) ([]int, error) {
	labels := make([]int, len(l.vertexKeys))
	seen := make([]bool, len(l.vertexKeys))
	err := scanFields(filename, func(_ int, fields []string) error {
		if len(fields) < 2 {
			return errors.New("label line needs a node and a label")
		}
		vid, ok := l.lookup(fields[0])
		if !ok {
			return errors.Errorf("unknown node %q", fields[0])
		}
		label, err := strconv.Atoi(fields[1])
		if err != nil || label < 0 {
			return errors.Errorf("invalid label %q", fields[1])
		}
		labels[vid] = label
		seen[vid] = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	for vid, ok := range seen {
		if !ok {
			return nil, errors.Errorf("%s: node %q has no label", filename, l.vertexKeys[vid])
		}
	}
	return labels, nil
}

func (l *loader) loadSplit(filename string) (*Split, error) {
	split := &Split{}
	err := scanFields(filename, func(_ int, fields []string) error {
		if len(fields) < 2 {
			return errors.New("split line needs a node and a set name")
		}
		vid, ok := l.lookup(fields[0])
		if !ok {
			return errors.Errorf("unknown node %q", fields[0])
		}
		switch fields[1] {
		case "train":
			split.Train = append(split.Train, vid)
		case "val":
			split.Val = append(split.Val, vid)
		case "test":
			split.Test = append(split.Test, vid)
		default:
			return errors.Errorf("unknown split %q", fields[1])
		}
		return nil
	})
	return split, err
}
