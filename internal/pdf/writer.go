package pdf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/pdfstow/pdfstow/internal/pdffilter"
)

// DefaultObjectsPerStream caps how many packed objects share one object
// stream before a new group is started.
const DefaultObjectsPerStream = 200

// ErrDanglingReference is returned by WriteTo when the object graph refers
// to an ObjectID that was never defined. This is a construction bug in the
// caller, not a recoverable runtime condition.
var ErrDanglingReference = errors.New("pdf: dangling reference")

// header is the PDF 1.5 file header. The comment line carries high bytes
// so transfer tooling treats the file as binary.
const header = "%PDF-1.5\n%\xe2\xe3\xcf\xd3\n"

// Document accumulates an indirect object graph and serializes it in one
// pass. Objects may reference IDs defined later; resolution happens only
// when WriteTo assigns offsets. The ID counter is not safe for concurrent
// use: allocation belongs to the single goroutine building the document.
type Document struct {
	objs             map[uint32]Object
	order            []uint32
	nextNum          uint32
	root             ObjectID
	ObjectsPerStream int
}

// NewDocument returns an empty document. Object numbers start at 1;
// number 0 is the reserved free-list head.
func NewDocument() *Document {
	return &Document{
		objs:             make(map[uint32]Object),
		nextNum:          1,
		ObjectsPerStream: DefaultObjectsPerStream,
	}
}

// NewObjectID allocates the next object number without defining the
// object, allowing forward references.
func (d *Document) NewObjectID() ObjectID {
	id := ObjectID{Num: d.nextNum}
	d.nextNum++
	return id
}

// Add allocates an ID and defines obj under it.
func (d *Document) Add(obj Object) ObjectID {
	id := d.NewObjectID()
	d.Set(id, obj)
	return id
}

// Set defines the object for a previously allocated ID.
func (d *Document) Set(id ObjectID, obj Object) {
	if _, exists := d.objs[id.Num]; !exists {
		d.order = append(d.order, id.Num)
	}
	d.objs[id.Num] = obj
}

// SetRoot records the document catalog object named by the trailer.
func (d *Document) SetRoot(id ObjectID) {
	d.root = id
}

// objectLocation records where an object landed in the output: at a byte
// offset, or at an index within a packed object stream.
type objectLocation struct {
	inStream  bool
	offset    int64
	container uint32
	index     int
}

// WriteTo serializes the document: header, stream objects at top level,
// all non-stream objects packed into object streams, a cross-reference
// stream, and the trailer. Returns the number of bytes written.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	if d.root.Num == 0 {
		return 0, errors.New("pdf: no root object set")
	}
	if err := d.checkReferences(); err != nil {
		return 0, err
	}

	cw := &countingWriter{w: w}
	if _, err := io.WriteString(cw, header); err != nil {
		return cw.n, err
	}

	locs := make(map[uint32]objectLocation, len(d.objs))

	// Stream objects stay individually addressable so one member can be
	// decompressed without touching the rest of the archive.
	var packable []uint32
	for _, num := range d.order {
		obj := d.objs[num]
		s, isStream := obj.(Stream)
		if !isStream {
			packable = append(packable, num)
			continue
		}
		locs[num] = objectLocation{offset: cw.n}
		if err := writeIndirectStream(cw, num, s); err != nil {
			return cw.n, err
		}
	}

	if err := d.writeObjectStreams(cw, packable, locs); err != nil {
		return cw.n, err
	}

	xrefOffset, err := d.writeXrefStream(cw, locs)
	if err != nil {
		return cw.n, err
	}

	_, err = fmt.Fprintf(cw, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return cw.n, err
}

// writeObjectStreams packs the given object numbers into object streams of
// at most ObjectsPerStream members each and writes them out.
func (d *Document) writeObjectStreams(cw *countingWriter, nums []uint32, locs map[uint32]objectLocation) error {
	per := d.ObjectsPerStream
	if per <= 0 {
		per = DefaultObjectsPerStream
	}

	for start := 0; start < len(nums); start += per {
		end := min(start+per, len(nums))
		group := nums[start:end]

		var head, payload bytes.Buffer
		for i, num := range group {
			head.WriteString(strconv.FormatUint(uint64(num), 10))
			head.WriteByte(' ')
			head.WriteString(strconv.FormatInt(int64(payload.Len()), 10))
			head.WriteByte(' ')
			if err := encodeObject(&payload, d.objs[num]); err != nil {
				return err
			}
			payload.WriteByte('\n')
			locs[num] = objectLocation{inStream: true, index: i}
		}

		raw := append(head.Bytes(), payload.Bytes()...)
		compressed, filter, err := pdffilter.Compress(raw)
		if err != nil {
			return err
		}

		containerNum := d.nextNum
		d.nextNum++
		for _, num := range group {
			loc := locs[num]
			loc.container = containerNum
			locs[num] = loc
		}

		locs[containerNum] = objectLocation{offset: cw.n}
		s := Stream{
			Dict: Dict{
				"Type":   Name("ObjStm"),
				"N":      Integer(len(group)),
				"First":  Integer(head.Len()),
				"Filter": Name(filter),
			},
			Data: compressed,
		}
		if err := writeIndirectStream(cw, containerNum, s); err != nil {
			return err
		}
	}
	return nil
}

// xrefFieldWidths are the /W widths used for cross-reference stream rows:
// 1 byte entry type, 8 bytes offset or container number, 4 bytes
// generation or in-stream index.
var xrefFieldWidths = [3]int{1, 8, 4}

// writeXrefStream emits the cross-reference stream covering every object
// number, including the xref stream itself, and returns its byte offset.
func (d *Document) writeXrefStream(cw *countingWriter, locs map[uint32]objectLocation) (int64, error) {
	xrefNum := d.nextNum
	d.nextNum++
	xrefOffset := cw.n
	locs[xrefNum] = objectLocation{offset: xrefOffset}

	size := d.nextNum
	rowLen := xrefFieldWidths[0] + xrefFieldWidths[1] + xrefFieldWidths[2]
	rows := make([]byte, 0, int(size)*rowLen)
	row := make([]byte, rowLen)

	for num := uint32(0); num < size; num++ {
		loc, defined := locs[num]
		switch {
		case num == 0 || !defined:
			// Free entry. Object 0 heads the free list; allocated but
			// never-defined numbers are recorded free as well (they are
			// guaranteed unreferenced by checkReferences).
			row[0] = 0
			binary.BigEndian.PutUint64(row[1:9], 0)
			binary.BigEndian.PutUint32(row[9:13], 0xFFFF)
		case loc.inStream:
			row[0] = 2
			binary.BigEndian.PutUint64(row[1:9], uint64(loc.container))
			binary.BigEndian.PutUint32(row[9:13], uint32(loc.index))
		default:
			row[0] = 1
			binary.BigEndian.PutUint64(row[1:9], uint64(loc.offset))
			binary.BigEndian.PutUint32(row[9:13], 0)
		}
		rows = append(rows, row...)
	}

	compressed, filter, err := pdffilter.Compress(rows)
	if err != nil {
		return 0, err
	}

	s := Stream{
		Dict: Dict{
			"Type":   Name("XRef"),
			"Size":   Integer(size),
			"W":      Array{Integer(xrefFieldWidths[0]), Integer(xrefFieldWidths[1]), Integer(xrefFieldWidths[2])},
			"Root":   Reference(d.root),
			"Filter": Name(filter),
		},
		Data: compressed,
	}
	if err := writeIndirectStream(cw, xrefNum, s); err != nil {
		return 0, err
	}
	return xrefOffset, nil
}

// writeIndirectStream serializes one top-level stream object. /Length is
// set here from the actual payload size; the caller's dictionary is not
// mutated.
func writeIndirectStream(cw *countingWriter, num uint32, s Stream) error {
	dict := make(Dict, len(s.Dict)+1)
	for k, v := range s.Dict {
		dict[k] = v
	}
	dict["Length"] = Integer(len(s.Data))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d 0 obj\n", num)
	if err := encodeDict(&buf, dict); err != nil {
		return err
	}
	buf.WriteString("\nstream\n")
	buf.Write(s.Data)
	buf.WriteString("\nendstream\nendobj\n")

	_, err := cw.Write(buf.Bytes())
	return err
}

// checkReferences walks the whole graph and fails on any Reference whose
// target was never defined.
func (d *Document) checkReferences() error {
	for _, num := range d.order {
		if err := d.checkObject(d.objs[num]); err != nil {
			return fmt.Errorf("object %d: %w", num, err)
		}
	}
	return nil
}

func (d *Document) checkObject(obj Object) error {
	switch v := obj.(type) {
	case Reference:
		if _, ok := d.objs[v.Num]; !ok {
			return fmt.Errorf("%w: %d %d R", ErrDanglingReference, v.Num, v.Gen)
		}
	case Array:
		for _, elem := range v {
			if err := d.checkObject(elem); err != nil {
				return err
			}
		}
	case Dict:
		for _, elem := range v {
			if err := d.checkObject(elem); err != nil {
				return err
			}
		}
	case Stream:
		return d.checkObject(v.Dict)
	}
	return nil
}

// countingWriter tracks the running byte offset during assembly.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
