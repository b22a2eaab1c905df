package pdfstow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/pdfstow/pdfstow/internal/pdf"
)

// Reserved container vocabulary. The catalog stream is the only metadata
// the decoder trusts; the listing page is never parsed back.
const (
	// catalogRootKey is the reserved key in the document root pointing
	// at the archive catalog stream.
	catalogRootKey = pdf.Name("StowCatalog")

	// catalogSubtype tags the catalog stream so it is distinguishable
	// from embedded file streams.
	catalogSubtype = pdf.Name("StowArchive")

	// embeddedFileType tags each embedded file stream.
	embeddedFileType = pdf.Name("EmbeddedFile")

	// catalogVersion is the schema version written into new catalogs.
	catalogVersion = "1.0"
)

// catalogDoc is the JSON document stored in the catalog stream.
type catalogDoc struct {
	Version string         `json:"version"`
	Entries []catalogEntry `json:"entries"`
}

// catalogEntry is the wire form of one FileEntry. StreamRef is the object
// number of the embedded file stream; the generation is always zero in
// containers this package writes.
type catalogEntry struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	ModifiedTime int64  `json:"modifiedTime"`
	StreamRef    uint32 `json:"streamRef"`
	Digest       string `json:"digest,omitempty"`
}

// marshalCatalog serializes entries into the catalog JSON document.
func marshalCatalog(entries []FileEntry) ([]byte, error) {
	doc := catalogDoc{
		Version: catalogVersion,
		Entries: make([]catalogEntry, len(entries)),
	}
	for i, e := range entries {
		doc.Entries[i] = catalogEntry{
			Path:         e.Path,
			Size:         e.Size,
			ModifiedTime: e.ModTime.Unix(),
			StreamRef:    e.streamID.Num,
			Digest:       string(e.Digest),
		}
	}
	return json.Marshal(doc)
}

// unmarshalCatalog parses the catalog JSON document back into entries.
func unmarshalCatalog(data []byte) ([]FileEntry, error) {
	var doc catalogDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse catalog: %v", ErrMalformed, err)
	}
	entries := make([]FileEntry, len(doc.Entries))
	for i, ce := range doc.Entries {
		if ce.StreamRef == 0 {
			return nil, fmt.Errorf("%w: catalog entry %q has no stream reference", ErrBrokenReference, ce.Path)
		}
		entries[i] = FileEntry{
			Path:     ce.Path,
			Size:     ce.Size,
			ModTime:  time.Unix(ce.ModifiedTime, 0),
			Digest:   digest.Digest(ce.Digest),
			streamID: pdf.ObjectID{Num: ce.StreamRef},
		}
	}
	return entries, nil
}
