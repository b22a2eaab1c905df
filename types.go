package pdfstow

import (
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/pdfstow/pdfstow/internal/pdf"
)

// Source describes one input file to archive. The walker (or any other
// collaborator) supplies these in the order they should appear; Create
// reads the payload from AbsPath when the file is embedded.
//
// Path is the archive-relative location, forward slashes only. It is
// recorded exactly as given: no cleaning, no traversal checks.
type Source struct {
	Path    string
	AbsPath string
	Size    int64
	ModTime time.Time
}

// FileEntry is one catalog record: where a file lives in the archive and
// how to restore it.
type FileEntry struct {
	// Path is the archive-relative path, forward slashes.
	Path string

	// Size is the exact decompressed byte count.
	Size int64

	// ModTime is the recorded modification time, second precision.
	ModTime time.Time

	// Digest is the sha256 digest of the original content, verified on
	// extraction. Empty when the container predates digest recording.
	Digest digest.Digest

	streamID pdf.ObjectID
}

// CreateStats summarizes an encode run.
type CreateStats struct {
	FileCount      int
	TotalBytes     int64 // uncompressed input bytes
	ContainerBytes int64 // final container size
}

// ExtractStats summarizes a decode run.
type ExtractStats struct {
	FileCount  int   // entries written successfully
	TotalBytes int64 // decompressed bytes written
	Failed     int   // entries that could not be restored
}
