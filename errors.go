package pdfstow

import (
	"errors"

	"github.com/pdfstow/pdfstow/internal/pdf"
	"github.com/pdfstow/pdfstow/internal/pdffilter"
)

// Errors re-exported from the container layer.
var (
	// ErrMalformed is returned when the container cannot be parsed:
	// unrecognizable header, missing trailer, broken cross-reference
	// data. The whole decode operation fails; no partial extraction is
	// attempted.
	ErrMalformed = pdf.ErrMalformed

	// ErrMissingRoot is returned when the trailer names no root object.
	ErrMissingRoot = pdf.ErrMissingRoot

	// ErrBrokenReference is returned when the catalog points at an
	// object the cross-reference index cannot resolve.
	ErrBrokenReference = pdf.ErrBrokenReference

	// ErrDecompression is returned when a compressed payload cannot be
	// inflated. Fatal for the affected stream.
	ErrDecompression = pdffilter.ErrDecompression

	// ErrUnsupportedFilter is returned when a stream declares a filter
	// this package does not implement. Unknown filters are rejected,
	// never guessed.
	ErrUnsupportedFilter = pdffilter.ErrUnsupportedFilter
)

// Errors specific to the archive layer.
var (
	// ErrMissingCatalog is returned when the container parses but its
	// root dictionary carries no archive catalog.
	ErrMissingCatalog = errors.New("pdfstow: no archive catalog in container")

	// ErrLengthMismatch is returned when a stream's decompressed size
	// disagrees with the recorded length. The entry is not written;
	// content is never truncated or padded to fit.
	ErrLengthMismatch = errors.New("pdfstow: decompressed length disagrees with recorded size")

	// ErrDigestMismatch is returned when extracted content does not
	// match the digest recorded in the catalog.
	ErrDigestMismatch = errors.New("pdfstow: content digest mismatch")
)
