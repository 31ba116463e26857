package artifact

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Decompress returns a reader over the decoded content of r. zstd frames are
// detected by their magic number; anything else is passed through.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)

	head, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading artifact header: %w", err)
	}

	if !bytes.Equal(head, zstdMagic) {
		return io.NopCloser(br), nil
	}

	dec, err := zstd.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return dec.IOReadCloser(), nil
}

// Compress wraps w in a zstd encoder. Closing the returned writer flushes
// the frame but does not close w.
func Compress(w io.Writer) (io.WriteCloser, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return enc, nil
}
