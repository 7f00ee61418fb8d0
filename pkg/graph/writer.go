package graph

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// WriteRaw stores raw in the directory format read by LoadRaw.
func WriteRaw(dir string, raw *Raw) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %q", dir)
	}

	err := writeLines(filepath.Join(dir, FeaturesFile), func(w *bufio.Writer) {
		_, cols := raw.Features.Dims()
		for i, name := range raw.Names {
			w.WriteString(name)
			for j := 0; j < cols; j++ {
				w.WriteByte(' ')
				w.WriteString(strconv.FormatFloat(raw.Features.At(i, j), 'g', -1, 64))
			}
			w.WriteByte('\n')
		}
	})
	if err != nil {
		return err
	}

	err = writeLines(filepath.Join(dir, EdgesFile), func(w *bufio.Writer) {
		for _, e := range raw.Edges {
			fmt.Fprintf(w, "%s %s %g\n", raw.Names[e.Src], raw.Names[e.Dst], e.Weight)
		}
	})
	if err != nil {
		return err
	}

	err = writeLines(filepath.Join(dir, LabelsFile), func(w *bufio.Writer) {
		for i, name := range raw.Names {
			fmt.Fprintf(w, "%s %d\n", name, raw.Labels[i])
		}
	})
	if err != nil || raw.Split == nil {
		return err
	}

	return writeLines(filepath.Join(dir, SplitFile), func(w *bufio.Writer) {
		for set, idx := range map[string][]int{"train": raw.Split.Train, "val": raw.Split.Val, "test": raw.Split.Test} {
			for _, i := range idx {
				fmt.Fprintf(w, "%s %s\n", raw.Names[i], set)
			}
		}
	})
}

func writeLines(filename string, fill func(w *bufio.Writer)) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	w := bufio.NewWriter(file)
	fill(w)
	if err := w.Flush(); err != nil {
		file.Close()
		return errors.Wrapf(err, "failed to write %s", filename)
	}
	return errors.Wrapf(file.Close(), "failed to close %s", filename)
}
