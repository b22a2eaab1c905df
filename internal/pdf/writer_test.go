package pdf

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfstow/pdfstow/internal/pdffilter"
)

// buildTestDoc assembles a small document: two payload streams and a few
// dictionaries wired through forward references.
func buildTestDoc(t *testing.T) (*Document, map[string]ObjectID) {
	t.Helper()
	doc := NewDocument()
	ids := make(map[string]ObjectID)

	pagesID := doc.NewObjectID() // forward reference
	ids["pages"] = pagesID

	ids["stream1"] = doc.Add(NewStream(Dict{"Kind": Name("Payload")}, []byte("first payload")))
	ids["stream2"] = doc.Add(NewStream(Dict{"Kind": Name("Payload")}, []byte{0x00, 0xFF, 0x10}))

	pageID := doc.Add(Dict{
		"Type":   Name("Page"),
		"Parent": Reference(pagesID),
	})
	ids["page"] = pageID

	doc.Set(pagesID, Dict{
		"Type":  Name("Pages"),
		"Kids":  Array{Reference(pageID)},
		"Count": Integer(1),
	})

	ids["root"] = doc.Add(Dict{
		"Type":  Name("Catalog"),
		"Pages": Reference(pagesID),
		"Data":  Reference(ids["stream1"]),
	})
	doc.SetRoot(ids["root"])
	return doc, ids
}

func TestWriteToProducesParseableContainer(t *testing.T) {
	t.Parallel()

	doc, ids := buildTestDoc(t)

	var buf bytes.Buffer
	n, err := doc.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "%PDF-1.5\n"))
	assert.True(t, strings.HasSuffix(out, "%%EOF\n"))

	r, err := NewReader(buf.Bytes())
	require.NoError(t, err)

	root, err := r.Root()
	require.NoError(t, err)
	assert.Equal(t, Name("Catalog"), root["Type"])

	// Packed dictionary objects resolve through the object stream.
	pages, err := r.Resolve(root["Pages"])
	require.NoError(t, err)
	assert.Equal(t, Dict{
		"Type":  Name("Pages"),
		"Kids":  Array{Reference(ids["page"])},
		"Count": Integer(1),
	}, pages)

	// Stream objects stay directly addressable.
	obj, err := r.Get(ids["stream1"])
	require.NoError(t, err)
	s, ok := obj.(Stream)
	require.True(t, ok)
	assert.Equal(t, []byte("first payload"), s.Data)

	obj, err = r.Get(ids["stream2"])
	require.NoError(t, err)
	s, ok = obj.(Stream)
	require.True(t, ok)
	assert.Equal(t, []byte{0x00, 0xFF, 0x10}, s.Data)
}

func TestWriteToManyObjectStreams(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	doc.ObjectsPerStream = 2

	var ids []ObjectID
	for i := 0; i < 7; i++ {
		ids = append(ids, doc.Add(Dict{"Index": Integer(i)}))
	}
	doc.SetRoot(doc.Add(Dict{"Type": Name("Catalog")}))

	var buf bytes.Buffer
	_, err := doc.WriteTo(&buf)
	require.NoError(t, err)

	r, err := NewReader(buf.Bytes())
	require.NoError(t, err)

	// Members must resolve regardless of which group they landed in.
	for i, id := range ids {
		obj, err := r.Get(id)
		require.NoError(t, err)
		assert.Equal(t, Dict{"Index": Integer(i)}, obj)
	}
}

func TestWriteToCompressedStreamRoundTrip(t *testing.T) {
	t.Parallel()

	raw := bytes.Repeat([]byte("compress me "), 500)
	compressed, filter, err := pdffilter.Compress(raw)
	require.NoError(t, err)

	doc := NewDocument()
	streamID := doc.Add(NewStream(Dict{"Filter": Name(filter)}, compressed))
	doc.SetRoot(doc.Add(Dict{"Data": Reference(streamID)}))

	var buf bytes.Buffer
	_, err = doc.WriteTo(&buf)
	require.NoError(t, err)

	r, err := NewReader(buf.Bytes())
	require.NoError(t, err)
	obj, err := r.Get(streamID)
	require.NoError(t, err)

	data, err := r.StreamData(obj.(Stream))
	require.NoError(t, err)
	assert.Equal(t, raw, data)
}

func TestWriteToDanglingReference(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	ghost := doc.NewObjectID() // allocated, never defined
	doc.SetRoot(doc.Add(Dict{"Ghost": Reference(ghost)}))

	var buf bytes.Buffer
	_, err := doc.WriteTo(&buf)
	require.ErrorIs(t, err, ErrDanglingReference)
}

func TestWriteToUnreferencedUndefinedIDIsFree(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	unused := doc.NewObjectID() // allocated, never defined, never referenced
	doc.SetRoot(doc.Add(Dict{"Type": Name("Catalog")}))

	var buf bytes.Buffer
	_, err := doc.WriteTo(&buf)
	require.NoError(t, err)

	r, err := NewReader(buf.Bytes())
	require.NoError(t, err)
	_, err = r.Get(unused)
	require.ErrorIs(t, err, ErrBrokenReference)
}

func TestWriteToRequiresRoot(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	doc.Add(Dict{"Type": Name("Catalog")})

	var buf bytes.Buffer
	_, err := doc.WriteTo(&buf)
	require.Error(t, err)
}

func TestWriteToStreamLengthIsExact(t *testing.T) {
	t.Parallel()

	// Payload containing "endstream" must not confuse the reader, since
	// extraction is driven by /Length rather than delimiter scanning.
	payload := []byte("x endstream y")
	doc := NewDocument()
	id := doc.Add(NewStream(nil, payload))
	doc.SetRoot(doc.Add(Dict{"Data": Reference(id)}))

	var buf bytes.Buffer
	_, err := doc.WriteTo(&buf)
	require.NoError(t, err)

	r, err := NewReader(buf.Bytes())
	require.NoError(t, err)
	obj, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, payload, obj.(Stream).Data)
}
