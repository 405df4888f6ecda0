package objfile

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// staticLibMagic is the four-byte signature prefixing a static library
// archive (spec.md §6).
const staticLibMagic = "BAR1"

var ErrBadLibraryMagic = errors.New("objfile: bad static library magic")

// WriteStaticLibrary concatenates objs into the BAR1 archive format:
// magic, object count, an offsets table, then each object file back to
// back at those offsets.
func WriteStaticLibrary(objs []*Object) ([]byte, error) {
	bodies := make([][]byte, len(objs))
	for i, o := range objs {
		b, err := o.Marshal()
		if err != nil {
			return nil, err
		}
		bodies[i] = b
	}

	headerLen := len(staticLibMagic) + 4 + 4*len(objs)
	offsets := make([]uint32, len(objs))
	cursor := uint32(headerLen)
	for i, b := range bodies {
		offsets[i] = cursor
		cursor += uint32(len(b))
	}

	var buf bytes.Buffer
	buf.WriteString(staticLibMagic)
	countBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(countBuf, uint32(len(objs)))
	buf.Write(countBuf)
	for _, off := range offsets {
		offBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(offBuf, off)
		buf.Write(offBuf)
	}
	for _, b := range bodies {
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// ReadStaticLibrary splits a BAR1 archive back into its member object
// files.
func ReadStaticLibrary(data []byte) ([]*Object, error) {
	if len(data) < len(staticLibMagic)+4 || string(data[:4]) != staticLibMagic {
		return nil, ErrBadLibraryMagic
	}
	n := binary.LittleEndian.Uint32(data[4:8])
	offsetsStart := 8
	offsetsEnd := offsetsStart + 4*int(n)
	if len(data) < offsetsEnd {
		return nil, ErrTruncated
	}

	offsets := make([]uint32, n)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(data[offsetsStart+4*i : offsetsStart+4*(i+1)])
	}

	objs := make([]*Object, n)
	for i, off := range offsets {
		end := uint32(len(data))
		if i+1 < int(n) {
			end = offsets[i+1]
		}
		if off > uint32(len(data)) || end > uint32(len(data)) {
			return nil, ErrTruncated
		}
		o, err := Unmarshal(data[off:end])
		if err != nil {
			return nil, err
		}
		objs[i] = o
	}
	return objs, nil
}
