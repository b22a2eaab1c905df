package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/pdfstow/pdfstow/internal/pdffilter"
)

// Sentinel errors surfaced while parsing a container.
var (
	// ErrMalformed is returned for structural failures: bad header,
	// missing trailer, unparseable cross-reference data.
	ErrMalformed = errors.New("pdf: malformed container")

	// ErrMissingRoot is returned when the trailer names no root object.
	ErrMissingRoot = errors.New("pdf: trailer has no root")

	// ErrBrokenReference is returned when an object ID cannot be
	// resolved through the cross-reference index.
	ErrBrokenReference = errors.New("pdf: unresolvable reference")
)

// xrefEntry locates one object: directly at a byte offset, or at an index
// within a packed object stream.
type xrefEntry struct {
	inStream  bool
	offset    int64
	container uint32
	index     int
}

// Reader parses a container read fully into memory and resolves indirect
// objects on demand. It is read-only and safe to discard at any point;
// nothing is written back.
type Reader struct {
	data    []byte
	entries map[uint32]xrefEntry
	trailer Dict

	// objStmCache maps a container object number to its unpacked
	// members, so each group is decompressed at most once. Guarded by
	// mu: Get may be called from multiple goroutines.
	mu          sync.Mutex
	objStmCache map[uint32]map[uint32]Object
}

// NewReader parses the header and the cross-reference chain. Object
// bodies are parsed lazily by Get.
func NewReader(data []byte) (*Reader, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: missing %%PDF header", ErrMalformed)
	}

	r := &Reader{
		data:        data,
		entries:     make(map[uint32]xrefEntry),
		objStmCache: make(map[uint32]map[uint32]Object),
	}

	offset, err := findStartXref(data)
	if err != nil {
		return nil, err
	}
	if err := r.loadXrefChain(offset); err != nil {
		return nil, err
	}
	if _, ok := r.trailer["Root"]; !ok {
		return nil, ErrMissingRoot
	}
	return r, nil
}

// Trailer returns the trailer dictionary (for cross-reference streams,
// the stream's own dictionary).
func (r *Reader) Trailer() Dict {
	return r.trailer
}

// Root resolves the trailer's root reference to the document catalog
// dictionary.
func (r *Reader) Root() (Dict, error) {
	obj, err := r.Resolve(r.trailer["Root"])
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(Dict)
	if !ok {
		return nil, fmt.Errorf("%w: root is not a dictionary", ErrMalformed)
	}
	return dict, nil
}

// Resolve follows obj through at most one level of indirection.
func (r *Reader) Resolve(obj Object) (Object, error) {
	if ref, ok := obj.(Reference); ok {
		return r.Get(ObjectID(ref))
	}
	return obj, nil
}

// Get loads the object with the given ID via the cross-reference index.
func (r *Reader) Get(id ObjectID) (Object, error) {
	entry, ok := r.entries[id.Num]
	if !ok {
		return nil, fmt.Errorf("%w: %d %d R", ErrBrokenReference, id.Num, id.Gen)
	}
	if entry.inStream {
		members, err := r.loadObjStm(entry.container)
		if err != nil {
			return nil, err
		}
		obj, ok := members[id.Num]
		if !ok {
			return nil, fmt.Errorf("%w: object %d not in stream %d", ErrBrokenReference, id.Num, entry.container)
		}
		return obj, nil
	}
	obj, _, err := r.parseIndirectAt(entry.offset, id.Num)
	return obj, err
}

// StreamData returns a stream's payload with its filter reversed. Streams
// without a filter are returned raw. Unknown filters are an error, never
// a guess.
func (r *Reader) StreamData(s Stream) ([]byte, error) {
	filter, err := r.filterName(s.Dict)
	if err != nil {
		return nil, err
	}
	return pdffilter.Decompress(s.Data, filter)
}

// filterName extracts the declared filter, accepting a bare name or a
// single-element array.
func (r *Reader) filterName(dict Dict) (string, error) {
	raw, ok := dict["Filter"]
	if !ok {
		return "", nil
	}
	obj, err := r.Resolve(raw)
	if err != nil {
		return "", err
	}
	switch v := obj.(type) {
	case Name:
		return string(v), nil
	case Array:
		if len(v) == 0 {
			return "", nil
		}
		if len(v) == 1 {
			if n, ok := v[0].(Name); ok {
				return string(n), nil
			}
		}
		return "", fmt.Errorf("%w: filter chains", pdffilter.ErrUnsupportedFilter)
	default:
		return "", fmt.Errorf("%w: filter is %T", ErrMalformed, obj)
	}
}

// Int resolves obj and returns its integer value.
func (r *Reader) Int(obj Object) (int64, error) {
	v, err := r.Resolve(obj)
	if err != nil {
		return 0, err
	}
	n, ok := v.(Integer)
	if !ok {
		return 0, fmt.Errorf("%w: expected integer, found %T", ErrMalformed, v)
	}
	return int64(n), nil
}

// findStartXref scans the file tail for the last startxref marker.
func findStartXref(data []byte) (int64, error) {
	tail := data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, fmt.Errorf("%w: startxref not found", ErrMalformed)
	}
	lx := newLexer(tail, idx+len("startxref"))
	offset, err := lx.readUint()
	if err != nil {
		return 0, fmt.Errorf("%w: bad startxref offset", ErrMalformed)
	}
	if offset >= uint64(len(data)) {
		return 0, fmt.Errorf("%w: startxref offset %d beyond end of file", ErrMalformed, offset)
	}
	return int64(offset), nil
}

// loadXrefChain reads the cross-reference section at offset, then follows
// /Prev links. Earlier sections never override entries already seen,
// matching incremental-update precedence.
func (r *Reader) loadXrefChain(offset int64) error {
	seen := make(map[int64]bool)
	for {
		if seen[offset] {
			return fmt.Errorf("%w: cross-reference loop at offset %d", ErrMalformed, offset)
		}
		seen[offset] = true

		trailer, err := r.loadXrefSection(offset)
		if err != nil {
			return err
		}
		if r.trailer == nil {
			r.trailer = trailer
		}

		prev, ok := trailer["Prev"]
		if !ok {
			return nil
		}
		n, ok := prev.(Integer)
		if !ok || int64(n) < 0 || int64(n) >= int64(len(r.data)) {
			return fmt.Errorf("%w: bad Prev offset", ErrMalformed)
		}
		offset = int64(n)
	}
}

// loadXrefSection parses either a classic xref table or a cross-reference
// stream at the given offset and returns its trailer dictionary.
func (r *Reader) loadXrefSection(offset int64) (Dict, error) {
	lx := newLexer(r.data, int(offset))
	lx.skipSpace()
	if bytes.HasPrefix(r.data[lx.pos:], []byte("xref")) {
		return r.loadXrefTable(lx)
	}
	return r.loadXrefStream(offset)
}

// loadXrefTable parses the classic "xref ... trailer <<...>>" form.
func (r *Reader) loadXrefTable(lx *lexer) (Dict, error) {
	if err := lx.expectKeyword("xref"); err != nil {
		return nil, err
	}
	for {
		lx.skipSpace()
		if bytes.HasPrefix(r.data[lx.pos:], []byte("trailer")) {
			break
		}
		start, err := lx.readUint()
		if err != nil {
			return nil, err
		}
		count, err := lx.readUint()
		if err != nil {
			return nil, err
		}
		for i := uint64(0); i < count; i++ {
			off, err := lx.readUint()
			if err != nil {
				return nil, err
			}
			if _, err := lx.readUint(); err != nil { // generation
				return nil, err
			}
			lx.skipSpace()
			kind, ok := lx.peek()
			if !ok || (kind != 'n' && kind != 'f') {
				return nil, fmt.Errorf("%w: bad xref entry kind", ErrMalformed)
			}
			lx.pos++
			num := uint32(start + i)
			if kind == 'n' {
				r.setEntry(num, xrefEntry{offset: int64(off)})
			}
		}
	}
	if err := lx.expectKeyword("trailer"); err != nil {
		return nil, err
	}
	obj, err := lx.parseObject()
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(Dict)
	if !ok {
		return nil, fmt.Errorf("%w: trailer is not a dictionary", ErrMalformed)
	}
	return dict, nil
}

// loadXrefStream parses the PDF 1.5 cross-reference stream form.
func (r *Reader) loadXrefStream(offset int64) (Dict, error) {
	obj, _, err := r.parseIndirectAt(offset, 0)
	if err != nil {
		return nil, err
	}
	s, ok := obj.(Stream)
	if !ok {
		return nil, fmt.Errorf("%w: cross-reference object is not a stream", ErrMalformed)
	}
	if t, _ := s.Dict["Type"].(Name); t != "XRef" {
		return nil, fmt.Errorf("%w: cross-reference stream has type %q", ErrMalformed, t)
	}

	rows, err := r.StreamData(s)
	if err != nil {
		return nil, fmt.Errorf("decode cross-reference stream: %w", err)
	}

	widths, err := xrefWidths(s.Dict["W"])
	if err != nil {
		return nil, err
	}
	size, ok := s.Dict["Size"].(Integer)
	if !ok {
		return nil, fmt.Errorf("%w: cross-reference stream has no Size", ErrMalformed)
	}
	index, err := xrefIndex(s.Dict["Index"], int64(size))
	if err != nil {
		return nil, err
	}

	rowLen := widths[0] + widths[1] + widths[2]
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := int64(0); j < count; j++ {
			if pos+rowLen > len(rows) {
				return nil, fmt.Errorf("%w: cross-reference stream truncated", ErrMalformed)
			}
			typ := readXrefField(rows[pos:], widths[0], 1)
			f2 := readXrefField(rows[pos+widths[0]:], widths[1], 0)
			f3 := readXrefField(rows[pos+widths[0]+widths[1]:], widths[2], 0)
			pos += rowLen

			num := uint32(start + j)
			switch typ {
			case 0:
				// free entry
			case 1:
				r.setEntry(num, xrefEntry{offset: int64(f2)})
			case 2:
				r.setEntry(num, xrefEntry{inStream: true, container: uint32(f2), index: int(f3)})
			default:
				// Unknown entry types are treated as free per the spec's
				// forward-compatibility rule.
			}
		}
	}
	return s.Dict, nil
}

// setEntry records an entry unless a newer section already defined it.
func (r *Reader) setEntry(num uint32, e xrefEntry) {
	if _, exists := r.entries[num]; !exists {
		r.entries[num] = e
	}
}

// xrefWidths validates the /W array.
func xrefWidths(obj Object) ([3]int, error) {
	arr, ok := obj.(Array)
	if !ok || len(arr) != 3 {
		return [3]int{}, fmt.Errorf("%w: cross-reference stream W must be a 3-element array", ErrMalformed)
	}
	var w [3]int
	for i, elem := range arr {
		n, ok := elem.(Integer)
		if !ok || n < 0 || n > 8 {
			return [3]int{}, fmt.Errorf("%w: bad W field width", ErrMalformed)
		}
		w[i] = int(n)
	}
	return w, nil
}

// xrefIndex returns the /Index pairs, defaulting to [0 Size].
func xrefIndex(obj Object, size int64) ([]int64, error) {
	if obj == nil {
		return []int64{0, size}, nil
	}
	arr, ok := obj.(Array)
	if !ok || len(arr)%2 != 0 {
		return nil, fmt.Errorf("%w: bad cross-reference Index", ErrMalformed)
	}
	out := make([]int64, len(arr))
	for i, elem := range arr {
		n, ok := elem.(Integer)
		if !ok || n < 0 {
			return nil, fmt.Errorf("%w: bad cross-reference Index", ErrMalformed)
		}
		out[i] = int64(n)
	}
	return out, nil
}

// readXrefField decodes one big-endian field; zero-width fields take
// their default value.
func readXrefField(b []byte, width int, def uint64) uint64 {
	if width == 0 {
		return def
	}
	var v uint64
	for i := 0; i < width; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// parseIndirectAt parses "num gen obj ... endobj" at a byte offset. When
// wantNum is nonzero the object number must match. Streams read their
// payload using the declared /Length.
func (r *Reader) parseIndirectAt(offset int64, wantNum uint32) (Object, uint32, error) {
	if offset < 0 || offset >= int64(len(r.data)) {
		return nil, 0, fmt.Errorf("%w: object offset %d out of range", ErrMalformed, offset)
	}
	lx := newLexer(r.data, int(offset))

	num, err := lx.readUint()
	if err != nil {
		return nil, 0, err
	}
	if wantNum != 0 && uint32(num) != wantNum {
		return nil, 0, fmt.Errorf("%w: expected object %d at offset %d, found %d", ErrBrokenReference, wantNum, offset, num)
	}
	if _, err := lx.readUint(); err != nil { // generation
		return nil, 0, err
	}
	if err := lx.expectKeyword("obj"); err != nil {
		return nil, 0, err
	}

	obj, err := lx.parseObject()
	if err != nil {
		return nil, 0, err
	}

	lx.skipSpace()
	if !bytes.HasPrefix(r.data[lx.pos:], []byte("stream")) {
		return obj, uint32(num), nil
	}

	dict, ok := obj.(Dict)
	if !ok {
		return nil, 0, lx.errf("stream keyword after non-dictionary")
	}
	lx.pos += len("stream")
	// The keyword is followed by CRLF or LF.
	if b, ok := lx.peek(); ok && b == '\r' {
		lx.pos++
	}
	if b, ok := lx.peek(); ok && b == '\n' {
		lx.pos++
	}

	length, err := r.Int(dict["Length"])
	if err != nil {
		return nil, 0, fmt.Errorf("stream %d: resolve Length: %w", num, err)
	}
	if length < 0 || lx.pos+int(length) > len(r.data) {
		return nil, 0, fmt.Errorf("%w: stream %d length %d overruns file", ErrMalformed, num, length)
	}
	data := r.data[lx.pos : lx.pos+int(length)]
	lx.pos += int(length)
	if err := lx.expectKeyword("endstream"); err != nil {
		return nil, 0, err
	}
	return Stream{Dict: dict, Data: data}, uint32(num), nil
}

// loadObjStm decompresses and parses a packed object stream, caching the
// result so each group inflates once.
func (r *Reader) loadObjStm(containerNum uint32) (map[uint32]Object, error) {
	r.mu.Lock()
	members, ok := r.objStmCache[containerNum]
	r.mu.Unlock()
	if ok {
		return members, nil
	}

	entry, ok := r.entries[containerNum]
	if !ok || entry.inStream {
		return nil, fmt.Errorf("%w: object stream %d", ErrBrokenReference, containerNum)
	}
	obj, _, err := r.parseIndirectAt(entry.offset, containerNum)
	if err != nil {
		return nil, err
	}
	s, ok := obj.(Stream)
	if !ok {
		return nil, fmt.Errorf("%w: object %d is not a stream", ErrMalformed, containerNum)
	}
	if t, _ := s.Dict["Type"].(Name); t != "ObjStm" {
		return nil, fmt.Errorf("%w: object %d has type %q, want ObjStm", ErrMalformed, containerNum, t)
	}

	payload, err := r.StreamData(s)
	if err != nil {
		return nil, fmt.Errorf("decode object stream %d: %w", containerNum, err)
	}
	n, err := r.Int(s.Dict["N"])
	if err != nil {
		return nil, err
	}
	first, err := r.Int(s.Dict["First"])
	if err != nil {
		return nil, err
	}
	if first < 0 || first > int64(len(payload)) {
		return nil, fmt.Errorf("%w: object stream %d First out of range", ErrMalformed, containerNum)
	}

	head := newLexer(payload[:first], 0)
	members = make(map[uint32]Object, n)
	for i := int64(0); i < n; i++ {
		num, err := head.readUint()
		if err != nil {
			return nil, err
		}
		off, err := head.readUint()
		if err != nil {
			return nil, err
		}
		if off > uint64(len(payload))-uint64(first) {
			return nil, fmt.Errorf("%w: object stream %d member offset out of range", ErrMalformed, containerNum)
		}
		mlx := newLexer(payload, int(first)+int(off))
		member, err := mlx.parseObject()
		if err != nil {
			return nil, fmt.Errorf("object stream %d member %d: %w", containerNum, num, err)
		}
		members[uint32(num)] = member
	}

	r.mu.Lock()
	r.objStmCache[containerNum] = members
	r.mu.Unlock()
	return members, nil
}
