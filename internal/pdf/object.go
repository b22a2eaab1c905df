// Package pdf implements the subset of the PDF object model needed to host
// an archive: the indirect object graph, a document writer that emits
// object streams and a cross-reference stream, and a reader that resolves
// objects back out of either cross-reference flavor.
package pdf

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
)

// ObjectID identifies an indirect object. Gen is always 0 for documents
// produced by this package; nonzero generations only appear when reading
// containers written by incremental-update tooling.
type ObjectID struct {
	Num uint32
	Gen uint16
}

func (id ObjectID) String() string {
	return fmt.Sprintf("%d %d", id.Num, id.Gen)
}

// Object is the closed set of PDF value kinds. Every serialization and
// resolution site switches exhaustively over these types.
type Object interface {
	object()
}

type (
	// Null is the PDF null object.
	Null struct{}

	// Boolean is a PDF boolean.
	Boolean bool

	// Integer is a PDF integer.
	Integer int64

	// Real is a PDF real number.
	Real float64

	// String is a PDF literal string. The bytes are arbitrary.
	String []byte

	// Name is a PDF name without the leading slash.
	Name string

	// Array is an ordered sequence of objects.
	Array []Object

	// Dict maps names to objects. Keys are serialized in sorted order so
	// that encoding is deterministic.
	Dict map[Name]Object

	// Reference points at an indirect object.
	Reference ObjectID

	// Stream is a dictionary plus a raw byte payload. The payload is
	// stored exactly as given; the writer fills in /Length.
	Stream struct {
		Dict Dict
		Data []byte
	}
)

func (Null) object()      {}
func (Boolean) object()   {}
func (Integer) object()   {}
func (Real) object()      {}
func (String) object()    {}
func (Name) object()      {}
func (Array) object()     {}
func (Dict) object()      {}
func (Reference) object() {}
func (Stream) object()    {}

// NewStream builds a stream object, allocating the dictionary when nil.
func NewStream(dict Dict, data []byte) Stream {
	if dict == nil {
		dict = Dict{}
	}
	return Stream{Dict: dict, Data: data}
}

// isDelimiter reports whether b is a PDF delimiter character.
func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// isWhitespace reports whether b is PDF whitespace.
func isWhitespace(b byte) bool {
	switch b {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

// encodeObject appends the canonical serialization of obj to buf.
// Stream objects are not handled here: they are only legal as top-level
// indirect objects and the writer emits them itself.
func encodeObject(buf *bytes.Buffer, obj Object) error {
	switch v := obj.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Boolean:
		buf.WriteString(strconv.FormatBool(bool(v)))
	case Integer:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case Real:
		buf.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 64))
	case String:
		encodeString(buf, v)
	case Name:
		encodeName(buf, v)
	case Array:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			if err := encodeObject(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Dict:
		return encodeDict(buf, v)
	case Reference:
		fmt.Fprintf(buf, "%d %d R", v.Num, v.Gen)
	case Stream:
		return fmt.Errorf("pdf: stream nested inside another object")
	default:
		return fmt.Errorf("pdf: unknown object kind %T", obj)
	}
	return nil
}

// encodeDict writes a dictionary with keys in sorted order.
func encodeDict(buf *bytes.Buffer, d Dict) error {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	buf.WriteString("<<")
	for _, k := range keys {
		encodeName(buf, Name(k))
		buf.WriteByte(' ')
		if err := encodeObject(buf, d[Name(k)]); err != nil {
			return err
		}
	}
	buf.WriteString(">>")
	return nil
}

// encodeName writes /Name, escaping bytes that PDF name syntax cannot
// carry literally.
func encodeName(buf *bytes.Buffer, n Name) {
	buf.WriteByte('/')
	for i := 0; i < len(n); i++ {
		b := n[i]
		if b == '#' || b <= ' ' || b > '~' || isDelimiter(b) {
			fmt.Fprintf(buf, "#%02X", b)
			continue
		}
		buf.WriteByte(b)
	}
}

// encodeString writes a literal string. Balanced-paren tracking is not
// attempted; every special byte is escaped instead.
func encodeString(buf *bytes.Buffer, s String) {
	buf.WriteByte('(')
	for _, b := range s {
		switch b {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if b < ' ' || b > '~' {
				fmt.Fprintf(buf, `\%03o`, b)
			} else {
				buf.WriteByte(b)
			}
		}
	}
	buf.WriteByte(')')
}
