// Package pdffilter applies and reverses the stream filters the archive
// container uses. Only FlateDecode (zlib) is supported; unknown filter
// names are rejected rather than guessed at.
package pdffilter

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// FlateName is the filter tag recorded on every compressed stream.
const FlateName = "FlateDecode"

// Sentinel errors.
var (
	// ErrDecompression is returned when a compressed payload cannot be
	// inflated (truncated or corrupted data).
	ErrDecompression = errors.New("pdffilter: decompression failed")

	// ErrUnsupportedFilter is returned when a stream declares a filter
	// this package does not implement.
	ErrUnsupportedFilter = errors.New("pdffilter: unsupported filter")
)

// Compress deflates data at the maximum compression level and returns the
// compressed bytes together with the filter name to record on the stream.
// The compressed form is always used, even when it is larger than the
// input; round-trip correctness does not depend on the stored size.
func Compress(data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, "", fmt.Errorf("pdffilter: create compressor: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, "", fmt.Errorf("pdffilter: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("pdffilter: flush compressor: %w", err)
	}
	return buf.Bytes(), FlateName, nil
}

// Decompress reverses Compress for the named filter. An empty filter name
// means the payload was stored raw and is returned as-is.
func Decompress(data []byte, filter string) ([]byte, error) {
	switch filter {
	case "":
		return data, nil
	case FlateName:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFilter, filter)
	}
}
