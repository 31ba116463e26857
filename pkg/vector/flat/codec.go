package flat

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	magic         = "SLVF"
	formatVersion = uint16(1)
)

var byteOrder = binary.LittleEndian

// ErrBadFormat is returned when a persisted index cannot be decoded.
var ErrBadFormat = errors.New("malformed flat index")

// WriteTo serializes the index: a small header, the identifiers and then the
// row-major little-endian float32 matrix.
func (x *Index) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	cw := &countingWriter{w: bw}

	if _, err := io.WriteString(cw, magic); err != nil {
		return cw.n, err
	}
	header := []any{formatVersion, uint32(x.dim), uint32(len(x.ids))}
	for _, v := range header {
		if err := binary.Write(cw, byteOrder, v); err != nil {
			return cw.n, fmt.Errorf("writing header: %w", err)
		}
	}

	for _, id := range x.ids {
		if len(id) > math.MaxUint16 {
			return cw.n, fmt.Errorf("id %q too long", id[:32])
		}
		if err := binary.Write(cw, byteOrder, uint16(len(id))); err != nil {
			return cw.n, err
		}
		if _, err := io.WriteString(cw, id); err != nil {
			return cw.n, err
		}
	}

	if err := binary.Write(cw, byteOrder, x.data); err != nil {
		return cw.n, fmt.Errorf("writing vectors: %w", err)
	}

	return cw.n, bw.Flush()
}

// Read decodes an index previously written with WriteTo.
func Read(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)

	head := make([]byte, len(magic))
	if _, err := io.ReadFull(br, head); err != nil {
		return nil, fmt.Errorf("%w: reading magic: %v", ErrBadFormat, err)
	}
	if string(head) != magic {
		return nil, fmt.Errorf("%w: unexpected magic %q", ErrBadFormat, head)
	}

	var (
		version    uint16
		dim, count uint32
	)
	for _, v := range []any{&version, &dim, &count} {
		if err := binary.Read(br, byteOrder, v); err != nil {
			return nil, fmt.Errorf("%w: reading header: %v", ErrBadFormat, err)
		}
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadFormat, version)
	}
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero dimension", ErrBadFormat)
	}

	x := &Index{
		dim: int(dim),
		ids: make([]string, count),
	}

	for i := range x.ids {
		var n uint16
		if err := binary.Read(br, byteOrder, &n); err != nil {
			return nil, fmt.Errorf("%w: reading id %d: %v", ErrBadFormat, i, err)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: reading id %d: %v", ErrBadFormat, i, err)
		}
		x.ids[i] = string(buf)
	}

	x.data = make([]float32, int(count)*int(dim))
	if err := binary.Read(br, byteOrder, x.data); err != nil {
		return nil, fmt.Errorf("%w: reading vectors: %v", ErrBadFormat, err)
	}

	return x, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
