package pdf

import (
	"fmt"
	"strconv"
)

// lexer is a recursive-descent scanner over raw container bytes. It parses
// the textual object syntax only; stream payloads and cross-reference
// plumbing are handled by Reader.
type lexer struct {
	data []byte
	pos  int
}

func newLexer(data []byte, pos int) *lexer {
	return &lexer{data: data, pos: pos}
}

func (l *lexer) errf(format string, args ...any) error {
	return fmt.Errorf("%w: offset %d: %s", ErrMalformed, l.pos, fmt.Sprintf(format, args...))
}

// skipSpace advances past whitespace and % comments.
func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		switch {
		case isWhitespace(b):
			l.pos++
		case b == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *lexer) peek() (byte, bool) {
	if l.pos >= len(l.data) {
		return 0, false
	}
	return l.data[l.pos], true
}

// readRegular consumes a run of regular (non-delimiter, non-whitespace)
// bytes: a keyword, a number, or a name body.
func (l *lexer) readRegular() string {
	start := l.pos
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// expectKeyword consumes the given bare keyword or fails.
func (l *lexer) expectKeyword(kw string) error {
	l.skipSpace()
	if got := l.readRegular(); got != kw {
		return l.errf("expected %q, found %q", kw, got)
	}
	return nil
}

// readUint parses a bare non-negative integer token.
func (l *lexer) readUint() (uint64, error) {
	l.skipSpace()
	tok := l.readRegular()
	n, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return 0, l.errf("expected integer, found %q", tok)
	}
	return n, nil
}

// parseObject parses one object of any non-stream kind. Indirect
// references ("n g R") are recognized by lookahead after an integer.
func (l *lexer) parseObject() (Object, error) {
	l.skipSpace()
	b, ok := l.peek()
	if !ok {
		return nil, l.errf("unexpected end of data")
	}

	switch {
	case b == '/':
		return l.parseName()
	case b == '(':
		return l.parseLiteralString()
	case b == '[':
		return l.parseArray()
	case b == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			return l.parseDict()
		}
		return l.parseHexString()
	case b == 't' || b == 'f' || b == 'n':
		return l.parseKeyword()
	case b == '+' || b == '-' || b == '.' || (b >= '0' && b <= '9'):
		return l.parseNumeric()
	default:
		return nil, l.errf("unexpected byte %q", b)
	}
}

func (l *lexer) parseKeyword() (Object, error) {
	switch kw := l.readRegular(); kw {
	case "true":
		return Boolean(true), nil
	case "false":
		return Boolean(false), nil
	case "null":
		return Null{}, nil
	default:
		return nil, l.errf("unknown keyword %q", kw)
	}
}

// parseNumeric parses an integer or real, upgrading "n g R" sequences to a
// Reference via bounded lookahead.
func (l *lexer) parseNumeric() (Object, error) {
	tok := l.readRegular()

	if n, err := strconv.ParseUint(tok, 10, 32); err == nil {
		mark := l.pos
		if gen, genErr := l.tryUint(); genErr == nil && gen <= 0xFFFF {
			l.skipSpace()
			if b, ok := l.peek(); ok && b == 'R' {
				after := l.pos + 1
				if after >= len(l.data) || isWhitespace(l.data[after]) || isDelimiter(l.data[after]) {
					l.pos = after
					return Reference{Num: uint32(n), Gen: uint16(gen)}, nil
				}
			}
		}
		l.pos = mark
		return Integer(n), nil
	}

	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return Integer(n), nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return Real(f), nil
	}
	return nil, l.errf("malformed number %q", tok)
}

// tryUint attempts to read a bare unsigned integer without committing the
// position on failure.
func (l *lexer) tryUint() (uint64, error) {
	mark := l.pos
	l.skipSpace()
	tok := l.readRegular()
	n, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		l.pos = mark
		return 0, err
	}
	return n, nil
}

func (l *lexer) parseName() (Object, error) {
	l.pos++ // consume '/'
	var out []byte
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		if b == '#' && l.pos+2 < len(l.data) {
			hi := unhex(l.data[l.pos+1])
			lo := unhex(l.data[l.pos+2])
			if hi >= 0 && lo >= 0 {
				out = append(out, byte(hi<<4|lo))
				l.pos += 3
				continue
			}
		}
		out = append(out, b)
		l.pos++
	}
	return Name(out), nil
}

func (l *lexer) parseArray() (Object, error) {
	l.pos++ // consume '['
	var arr Array
	for {
		l.skipSpace()
		b, ok := l.peek()
		if !ok {
			return nil, l.errf("unterminated array")
		}
		if b == ']' {
			l.pos++
			return arr, nil
		}
		elem, err := l.parseObject()
		if err != nil {
			return nil, err
		}
		arr = append(arr, elem)
	}
}

func (l *lexer) parseDict() (Object, error) {
	l.pos += 2 // consume '<<'
	dict := Dict{}
	for {
		l.skipSpace()
		b, ok := l.peek()
		if !ok {
			return nil, l.errf("unterminated dictionary")
		}
		if b == '>' {
			if l.pos+1 < len(l.data) && l.data[l.pos+1] == '>' {
				l.pos += 2
				return dict, nil
			}
			return nil, l.errf("stray '>' in dictionary")
		}
		if b != '/' {
			return nil, l.errf("dictionary key must be a name, found %q", b)
		}
		key, err := l.parseName()
		if err != nil {
			return nil, err
		}
		val, err := l.parseObject()
		if err != nil {
			return nil, err
		}
		dict[key.(Name)] = val
	}
}

func (l *lexer) parseLiteralString() (Object, error) {
	l.pos++ // consume '('
	var out []byte
	depth := 1
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		switch b {
		case '\\':
			l.pos++
			if l.pos >= len(l.data) {
				return nil, l.errf("unterminated string escape")
			}
			e := l.data[l.pos]
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '(', ')', '\\':
				out = append(out, e)
			case '\r':
				// Escaped line break: swallow, including a following LF.
				if l.pos+1 < len(l.data) && l.data[l.pos+1] == '\n' {
					l.pos++
				}
			case '\n':
				// Escaped line break: swallow.
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && l.pos+1 < len(l.data); k++ {
						nb := l.data[l.pos+1]
						if nb < '0' || nb > '7' {
							break
						}
						v = v<<3 | int(nb-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
			l.pos++
		case '(':
			depth++
			out = append(out, b)
			l.pos++
		case ')':
			depth--
			if depth == 0 {
				l.pos++
				return String(out), nil
			}
			out = append(out, b)
			l.pos++
		default:
			out = append(out, b)
			l.pos++
		}
	}
	return nil, l.errf("unterminated string")
}

func (l *lexer) parseHexString() (Object, error) {
	l.pos++ // consume '<'
	var out []byte
	var hi = -1
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if b == '>' {
			l.pos++
			if hi >= 0 {
				out = append(out, byte(hi<<4)) // odd count: trailing zero nibble
			}
			return String(out), nil
		}
		if v := unhex(b); v >= 0 {
			if hi < 0 {
				hi = v
			} else {
				out = append(out, byte(hi<<4|v))
				hi = -1
			}
		} else if !isWhitespace(b) {
			return nil, l.errf("invalid hex string byte %q", b)
		}
		l.pos++
	}
	return nil, l.errf("unterminated hex string")
}

func unhex(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10
	}
	return -1
}
