package nn

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const checkpointMagic = "MVGRLCK1"

// WriteParams serialises params to w: a magic string, the parameter count,
// then for each parameter its name followed by gonum's binary encoding of
// the value.
func WriteParams(w io.Writer, params []*Param) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(checkpointMagic); err != nil {
		return errors.Wrap(err, "failed to write checkpoint header")
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(params))); err != nil {
		return errors.Wrap(err, "failed to write parameter count")
	}
	for _, p := range params {
		if err := binary.Write(bw, binary.LittleEndian, uint16(len(p.Name))); err != nil {
			return errors.Wrapf(err, "failed to write name of %q", p.Name)
		}
		if _, err := bw.WriteString(p.Name); err != nil {
			return errors.Wrapf(err, "failed to write name of %q", p.Name)
		}
		if _, err := p.Value.MarshalBinaryTo(bw); err != nil {
			return errors.Wrapf(err, "failed to write value of %q", p.Name)
		}
	}
	return errors.Wrap(bw.Flush(), "failed to flush checkpoint")
}

// ReadParams restores params from r. Names, order and shapes must match what
// WriteParams recorded.
func ReadParams(r io.Reader, params []*Param) error {
	br := bufio.NewReader(r)
	magic := make([]byte, len(checkpointMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return errors.Wrap(err, "failed to read checkpoint header")
	}
	if string(magic) != checkpointMagic {
		return errors.Errorf("not a checkpoint: bad header %q", magic)
	}
	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return errors.Wrap(err, "failed to read parameter count")
	}
	if int(count) != len(params) {
		return errors.Errorf("checkpoint holds %d parameters, model has %d", count, len(params))
	}
	for _, p := range params {
		var nameLen uint16
		if err := binary.Read(br, binary.LittleEndian, &nameLen); err != nil {
			return errors.Wrapf(err, "failed to read name for %q", p.Name)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(br, name); err != nil {
			return errors.Wrapf(err, "failed to read name for %q", p.Name)
		}
		if string(name) != p.Name {
			return errors.Errorf("checkpoint parameter %q does not match model parameter %q", name, p.Name)
		}
		var value mat.Dense
		if _, err := value.UnmarshalBinaryFrom(br); err != nil {
			return errors.Wrapf(err, "failed to read value of %q", p.Name)
		}
		wr, wc := p.Value.Dims()
		gr, gc := value.Dims()
		if wr != gr || wc != gc {
			return errors.Errorf("parameter %q: checkpoint shape %dx%d, model shape %dx%d", p.Name, gr, gc, wr, wc)
		}
		p.Value.Copy(&value)
	}
	return nil
}

// SaveParams writes params to path through a temporary file in the same
// directory followed by a rename.
func SaveParams(path string, params []*Param) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary checkpoint in %q", dir)
	}
	tmpName := tmp.Name()
	if err := WriteParams(tmp, params); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "failed to close %q", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "failed to move checkpoint into %q", path)
	}
	return nil
}

// LoadParams reads params from the checkpoint at path.
func LoadParams(path string, params []*Param) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open checkpoint %q", path)
	}
	defer f.Close()
	return errors.WithMessagef(ReadParams(f, params), "checkpoint %q", path)
}
