package pdfstow

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfstow/pdfstow/internal/pdf"
	"github.com/pdfstow/pdfstow/internal/pdffilter"
)

// craftContainer assembles a container by hand. The build callback adds
// whatever streams it wants and returns the catalog entries to record;
// the helper wires the catalog stream and the root dictionary.
func craftContainer(t *testing.T, build func(doc *pdf.Document) []FileEntry) []byte {
	t.Helper()
	doc := pdf.NewDocument()
	entries := build(doc)

	raw, err := marshalCatalog(entries)
	require.NoError(t, err)
	compressed, filter, err := pdffilter.Compress(raw)
	require.NoError(t, err)

	catalogID := doc.Add(pdf.NewStream(pdf.Dict{
		"Type":    pdf.Name("Metadata"),
		"Subtype": catalogSubtype,
		"Filter":  pdf.Name(filter),
	}, compressed))
	doc.SetRoot(doc.Add(pdf.Dict{
		"Type":         pdf.Name("Catalog"),
		catalogRootKey: pdf.Reference(catalogID),
	}))

	var buf bytes.Buffer
	_, err = doc.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

// addFileStream embeds content as a well-formed file stream and returns
// a matching catalog entry.
func addFileStream(t *testing.T, doc *pdf.Document, path string, content []byte) FileEntry {
	t.Helper()
	compressed, filter, err := pdffilter.Compress(content)
	require.NoError(t, err)
	id := doc.Add(pdf.NewStream(pdf.Dict{
		"Type":    embeddedFileType,
		"Filter":  pdf.Name(filter),
		"Length1": pdf.Integer(len(content)),
	}, compressed))
	return FileEntry{
		Path:     path,
		Size:     int64(len(content)),
		ModTime:  time.Unix(1_600_000_000, 0),
		Digest:   digest.FromBytes(content),
		streamID: id,
	}
}

func TestDecodeNotAContainer(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte("PK\x03\x04 this is a zip, not a pdf"))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeMissingCatalog(t *testing.T) {
	t.Parallel()

	// Structurally valid document whose root has no archive catalog.
	doc := pdf.NewDocument()
	doc.SetRoot(doc.Add(pdf.Dict{"Type": pdf.Name("Catalog")}))
	var buf bytes.Buffer
	_, err := doc.WriteTo(&buf)
	require.NoError(t, err)

	_, err = Decode(buf.Bytes())
	require.ErrorIs(t, err, ErrMissingCatalog)
}

func TestDecodeCorruptedCatalogStream(t *testing.T) {
	t.Parallel()

	raw, err := marshalCatalog(nil)
	require.NoError(t, err)
	compressed, filter, err := pdffilter.Compress(raw)
	require.NoError(t, err)

	// Truncate the catalog's compressed bytes; decode must fail loudly
	// rather than produce empty output.
	doc := pdf.NewDocument()
	catalogID := doc.Add(pdf.NewStream(pdf.Dict{
		"Type":    pdf.Name("Metadata"),
		"Subtype": catalogSubtype,
		"Filter":  pdf.Name(filter),
	}, compressed[:len(compressed)/2]))
	doc.SetRoot(doc.Add(pdf.Dict{
		"Type":         pdf.Name("Catalog"),
		catalogRootKey: pdf.Reference(catalogID),
	}))
	var buf bytes.Buffer
	_, err = doc.WriteTo(&buf)
	require.NoError(t, err)

	_, err = Decode(buf.Bytes())
	require.ErrorIs(t, err, ErrDecompression)
}

func TestDecodeCatalogStoredRaw(t *testing.T) {
	t.Parallel()

	// A catalog stream without a filter is accepted as-is.
	container := craftContainerRawCatalog(t)
	archive, err := Decode(container)
	require.NoError(t, err)
	require.Len(t, archive.Entries(), 1)

	data, err := archive.ReadFile(archive.Entries()[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), data)
}

func craftContainerRawCatalog(t *testing.T) []byte {
	t.Helper()
	doc := pdf.NewDocument()
	entry := addFileStream(t, doc, "plain.txt", []byte("plain"))

	raw, err := marshalCatalog([]FileEntry{entry})
	require.NoError(t, err)
	catalogID := doc.Add(pdf.NewStream(pdf.Dict{
		"Type":    pdf.Name("Metadata"),
		"Subtype": catalogSubtype,
	}, raw))
	doc.SetRoot(doc.Add(pdf.Dict{
		"Type":         pdf.Name("Catalog"),
		catalogRootKey: pdf.Reference(catalogID),
	}))

	var buf bytes.Buffer
	_, err = doc.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadFileBrokenReference(t *testing.T) {
	t.Parallel()

	container := craftContainer(t, func(doc *pdf.Document) []FileEntry {
		return []FileEntry{{
			Path:     "ghost.txt",
			Size:     4,
			ModTime:  time.Now(),
			streamID: pdf.ObjectID{Num: 4242},
		}}
	})

	archive, err := Decode(container)
	require.NoError(t, err)
	_, err = archive.ReadFile(archive.Entries()[0])
	require.ErrorIs(t, err, ErrBrokenReference)
}

func TestReadFileLengthMismatch(t *testing.T) {
	t.Parallel()

	container := craftContainer(t, func(doc *pdf.Document) []FileEntry {
		content := []byte("twelve bytes")
		compressed, filter, err := pdffilter.Compress(content)
		require.NoError(t, err)
		id := doc.Add(pdf.NewStream(pdf.Dict{
			"Type":    embeddedFileType,
			"Filter":  pdf.Name(filter),
			"Length1": pdf.Integer(len(content) + 3), // lies about the size
		}, compressed))
		return []FileEntry{{
			Path:     "liar.txt",
			Size:     int64(len(content)),
			ModTime:  time.Now(),
			streamID: id,
		}}
	})

	archive, err := Decode(container)
	require.NoError(t, err)
	_, err = archive.ReadFile(archive.Entries()[0])
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestReadFileCatalogSizeMismatch(t *testing.T) {
	t.Parallel()

	container := craftContainer(t, func(doc *pdf.Document) []FileEntry {
		entry := addFileStream(t, doc, "short.txt", []byte("abc"))
		entry.Size = 99 // catalog disagrees with the stream
		entry.Digest = ""
		return []FileEntry{entry}
	})

	archive, err := Decode(container)
	require.NoError(t, err)
	_, err = archive.ReadFile(archive.Entries()[0])
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestReadFileDigestMismatch(t *testing.T) {
	t.Parallel()

	container := craftContainer(t, func(doc *pdf.Document) []FileEntry {
		entry := addFileStream(t, doc, "tampered.txt", []byte("genuine"))
		entry.Digest = digest.FromString("something else")
		return []FileEntry{entry}
	})

	archive, err := Decode(container)
	require.NoError(t, err)
	_, err = archive.ReadFile(archive.Entries()[0])
	require.ErrorIs(t, err, ErrDigestMismatch)
}

func TestReadFileUnsupportedFilter(t *testing.T) {
	t.Parallel()

	container := craftContainer(t, func(doc *pdf.Document) []FileEntry {
		id := doc.Add(pdf.NewStream(pdf.Dict{
			"Type":    embeddedFileType,
			"Filter":  pdf.Name("LZWDecode"),
			"Length1": pdf.Integer(3),
		}, []byte{1, 2, 3}))
		return []FileEntry{{
			Path:     "exotic.bin",
			Size:     3,
			ModTime:  time.Now(),
			streamID: id,
		}}
	})

	archive, err := Decode(container)
	require.NoError(t, err)
	_, err = archive.ReadFile(archive.Entries()[0])
	require.ErrorIs(t, err, ErrUnsupportedFilter)
}

func TestExtractAllContinuesPastFailures(t *testing.T) {
	t.Parallel()

	container := craftContainer(t, func(doc *pdf.Document) []FileEntry {
		good := addFileStream(t, doc, "good.txt", []byte("intact"))
		broken := FileEntry{
			Path:     "broken.txt",
			Size:     5,
			ModTime:  time.Now(),
			streamID: pdf.ObjectID{Num: 9999},
		}
		// The broken entry comes first; extraction must still restore
		// the good one.
		return []FileEntry{broken, good}
	})

	archive, err := Decode(container)
	require.NoError(t, err)

	dest := t.TempDir()
	stats, err := archive.ExtractAll(context.Background(), dest)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrBrokenReference)

	assert.Equal(t, 1, stats.FileCount)
	assert.Equal(t, 1, stats.Failed)

	data, readErr := os.ReadFile(filepath.Join(dest, "good.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, []byte("intact"), data)
}

func TestExtractAllCanceledContext(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string][]byte{"f.txt": []byte("x")})
	archive, err := Decode(encodeTree(t, dir))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = archive.ExtractAll(ctx, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
}

func TestEntriesReturnsCopy(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string][]byte{"f.txt": []byte("x")})
	archive, err := Decode(encodeTree(t, dir))
	require.NoError(t, err)

	entries := archive.Entries()
	entries[0].Path = "mutated"
	assert.Equal(t, "f.txt", archive.Entries()[0].Path)
}
