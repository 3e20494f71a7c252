package codec

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/teranos/idxtools/errors"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Source is a fully buffered, seekable view of an index file along with
// the raw bytes it was read from.
type Source struct {
	*bytes.Reader
	Raw        []byte
	Compressed bool
}

// ReadSource reads path into memory, decompressing gzip or zstd content.
// Compression is detected from magic bytes, not the file name.
func ReadSource(path string) (*Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIOf(err, "read index %s", path)
	}
	return NewSource(raw)
}

// NewSource wraps raw bytes, decompressing them when needed.
func NewSource(raw []byte) (*Source, error) {
	data, compressed, err := decompress(raw)
	if err != nil {
		return nil, err
	}
	return &Source{Reader: bytes.NewReader(data), Raw: raw, Compressed: compressed}, nil
}

func decompress(raw []byte) ([]byte, bool, error) {
	switch {
	case bytes.HasPrefix(raw, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, false, errors.WrapIO(err, "open gzip stream")
		}
		defer zr.Close()
		data, err := io.ReadAll(zr)
		if err != nil {
			return nil, false, errors.WrapIO(err, "read gzip stream")
		}
		return data, true, nil
	case bytes.HasPrefix(raw, zstdMagic):
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, false, errors.WrapIO(err, "create zstd decoder")
		}
		defer dec.Close()
		data, err := dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, false, errors.WrapIO(err, "read zstd stream")
		}
		return data, true, nil
	default:
		return raw, false, nil
	}
}

// Compression names the compression applied by NewSink.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

// CompressionFor picks the compression from a file name suffix.
func CompressionFor(path string) Compression {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return CompressionGzip
	case strings.HasSuffix(path, ".zst"):
		return CompressionZstd
	default:
		return CompressionNone
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// NewSink wraps w so that writes are compressed as c. Closing the sink
// flushes the compressor but never closes w.
func NewSink(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, errors.WrapIO(err, "create zstd encoder")
		}
		return enc, nil
	default:
		return nopCloser{w}, nil
	}
}
