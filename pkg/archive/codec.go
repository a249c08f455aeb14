// pkg/archive/codec.go
package archive

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression identifies a stream codec
type Compression string

const (
	None Compression = ""
	XZ   Compression = "xz"
	Zstd Compression = "zst"
	Gzip Compression = "gz"
)

// DetectCompression picks a codec from a file or member name
func DetectCompression(name string) Compression {
	switch {
	case strings.HasSuffix(name, ".xz"):
		return XZ
	case strings.HasSuffix(name, ".zst"):
		return Zstd
	case strings.HasSuffix(name, ".gz"), strings.HasSuffix(name, ".tgz"):
		return Gzip
	default:
		return None
	}
}

// NewReader wraps r with a decompressor for c
func NewReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case XZ:
		xzReader, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("creating xz reader: %w", err)
		}
		return io.NopCloser(xzReader), nil
	case Zstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		return decoder.IOReadCloser(), nil
	case Gzip:
		gzReader, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return gzReader, nil
	case None:
		return io.NopCloser(r), nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", c)
	}
}

// NewWriter wraps w with a compressor for c. Close must be called to flush.
func NewWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case XZ:
		xzWriter, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("creating xz writer: %w", err)
		}
		return xzWriter, nil
	case Zstd:
		encoder, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("creating zstd writer: %w", err)
		}
		return encoder, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case None:
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", c)
	}
}

// Compress compresses data in memory
func Compress(data []byte, c Compression) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, c)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finishing compression: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reads r to the end through a decompressor for c
func Decompress(r io.Reader, c Compression) ([]byte, error) {
	rc, err := NewReader(r, c)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return data, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
