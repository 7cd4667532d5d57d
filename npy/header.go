package npy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hupe1980/phyalf/internal/conv"
)

// Magic is the six-byte signature every .npy file starts with.
const Magic = "\x93NUMPY"

const (
	preambleV1 = 10 // magic(6) + version(2) + uint16 length
	preambleV2 = 12 // magic(6) + version(2) + uint32 length
	alignment  = 64
)

// Header is the typed record stored in a .npy preamble.
type Header struct {
	Descr        string
	FortranOrder bool
	Shape        []int
}

// Size returns the number of elements described by the shape. It assumes a
// shape that Elements accepts.
func (h Header) Size() int {
	n := 1
	for _, d := range h.Shape {
		n *= d
	}
	return n
}

// Elements returns the number of elements described by the shape. Negative
// dimensions and products that overflow int fail with ErrFormat.
func (h Header) Elements() (int, error) {
	n := 1
	for _, d := range h.Shape {
		var err error
		if n, err = conv.MulInt(n, d); err != nil {
			return 0, fmt.Errorf("%w: shape %v: %v", ErrFormat, h.Shape, err)
		}
	}
	return n, nil
}

// PayloadSize returns the payload length in bytes. Shapes whose byte size
// does not fit an int fail with ErrFormat.
func (h Header) PayloadSize() (int, error) {
	dt, err := ParseDType(h.Descr)
	if err != nil {
		return 0, err
	}
	n, err := h.Elements()
	if err != nil {
		return 0, err
	}
	size, err := conv.MulInt(n, dt.Size)
	if err != nil {
		return 0, fmt.Errorf("%w: shape %v of %s: %v", ErrFormat, h.Shape, h.Descr, err)
	}
	return size, nil
}

// ReadHeader parses the preamble at the start of r. It returns the header and
// the offset at which the payload begins.
//
// Only the three keys numpy itself writes are accepted: descr,
// fortran_order and shape. Anything else is rejected with ErrFormat.
func ReadHeader(r io.Reader) (Header, int, error) {
	pre := make([]byte, preambleV1)
	if _, err := io.ReadFull(r, pre); err != nil {
		return Header{}, 0, fmt.Errorf("%w: short preamble: %v", ErrFormat, err)
	}
	if string(pre[:6]) != Magic {
		return Header{}, 0, fmt.Errorf("%w: invalid magic %q", ErrFormat, pre[:6])
	}
	major, minor := pre[6], pre[7]
	if minor != 0 {
		return Header{}, 0, fmt.Errorf("%w: unsupported version %d.%d", ErrFormat, major, minor)
	}

	var (
		length int
		offset int
	)
	switch major {
	case 1:
		length = int(binary.LittleEndian.Uint16(pre[8:10]))
		offset = preambleV1
	case 2, 3:
		ext := make([]byte, 2)
		if _, err := io.ReadFull(r, ext); err != nil {
			return Header{}, 0, fmt.Errorf("%w: short preamble: %v", ErrFormat, err)
		}
		n, err := conv.Uint32ToInt(binary.LittleEndian.Uint32(append(pre[8:10:10], ext...)))
		if err != nil {
			return Header{}, 0, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		length = n
		offset = preambleV2
	default:
		return Header{}, 0, fmt.Errorf("%w: unsupported version %d.%d", ErrFormat, major, minor)
	}

	raw := make([]byte, length)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Header{}, 0, fmt.Errorf("%w: truncated header: %v", ErrFormat, err)
	}
	h, err := parseDict(string(raw))
	if err != nil {
		return Header{}, 0, err
	}
	if _, err := h.PayloadSize(); err != nil {
		return Header{}, 0, err
	}
	return h, offset + length, nil
}

// ReadHeaderFile reads only the header of the file at path.
func ReadHeaderFile(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	h, _, err := ReadHeader(f)
	return h, err
}

// WriteHeader writes a version 1.0 preamble, or 2.0 if the dict does not fit
// a uint16 length. The preamble is padded so the payload is 64-byte aligned.
func WriteHeader(w io.Writer, h Header) (int, error) {
	if _, err := ParseDType(h.Descr); err != nil {
		return 0, err
	}
	dict := formatDict(h)

	pre := preambleV1
	total := pre + len(dict) + 1
	if rem := total % alignment; rem != 0 {
		total += alignment - rem
	}
	if total-pre > 0xFFFF {
		pre = preambleV2
		total = pre + len(dict) + 1
		if rem := total % alignment; rem != 0 {
			total += alignment - rem
		}
	}

	var buf bytes.Buffer
	buf.Grow(total)
	buf.WriteString(Magic)
	if pre == preambleV1 {
		n, err := conv.IntToUint16(total - pre)
		if err != nil {
			return 0, err
		}
		buf.Write([]byte{1, 0})
		_ = binary.Write(&buf, binary.LittleEndian, n)
	} else {
		n, err := conv.IntToUint32(total - pre)
		if err != nil {
			return 0, err
		}
		buf.Write([]byte{2, 0})
		_ = binary.Write(&buf, binary.LittleEndian, n)
	}
	buf.WriteString(dict)
	buf.WriteString(strings.Repeat(" ", total-buf.Len()-1))
	buf.WriteByte('\n')

	return w.Write(buf.Bytes())
}

func formatDict(h Header) string {
	var sb strings.Builder
	sb.WriteString("{'descr': '")
	sb.WriteString(h.Descr)
	sb.WriteString("', 'fortran_order': ")
	if h.FortranOrder {
		sb.WriteString("True")
	} else {
		sb.WriteString("False")
	}
	sb.WriteString(", 'shape': (")
	for i, d := range h.Shape {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(d))
	}
	if len(h.Shape) == 1 {
		sb.WriteByte(',')
	}
	sb.WriteString("), }")
	return sb.String()
}

// dictParser is a strict scanner for the python dict literal in a header.
type dictParser struct {
	s   string
	pos int
}

func parseDict(s string) (Header, error) {
	p := &dictParser{s: s}
	var (
		h    Header
		seen = make(map[string]bool, 3)
	)

	if !p.consume('{') {
		return Header{}, p.errorf("expected '{'")
	}
	for {
		if p.consume('}') {
			break
		}
		key, err := p.quoted()
		if err != nil {
			return Header{}, err
		}
		if seen[key] {
			return Header{}, p.errorf("duplicate key %q", key)
		}
		seen[key] = true
		if !p.consume(':') {
			return Header{}, p.errorf("expected ':' after %q", key)
		}

		switch key {
		case "descr":
			h.Descr, err = p.quoted()
		case "fortran_order":
			h.FortranOrder, err = p.boolean()
		case "shape":
			h.Shape, err = p.tuple()
		default:
			return Header{}, p.errorf("unexpected key %q", key)
		}
		if err != nil {
			return Header{}, err
		}

		if p.consume(',') {
			continue
		}
		if p.consume('}') {
			break
		}
		return Header{}, p.errorf("expected ',' or '}'")
	}

	p.skipSpace()
	if p.pos != len(p.s) {
		return Header{}, p.errorf("trailing bytes after dict")
	}
	if len(seen) != 3 {
		return Header{}, fmt.Errorf("%w: header must define descr, fortran_order and shape", ErrFormat)
	}
	return h, nil
}

func (p *dictParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: header offset %d: %s", ErrFormat, p.pos, fmt.Sprintf(format, args...))
}

func (p *dictParser) skipSpace() {
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *dictParser) consume(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.s) && p.s[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *dictParser) quoted() (string, error) {
	p.skipSpace()
	if p.pos >= len(p.s) || (p.s[p.pos] != '\'' && p.s[p.pos] != '"') {
		return "", p.errorf("expected quoted string")
	}
	q := p.s[p.pos]
	end := strings.IndexByte(p.s[p.pos+1:], q)
	if end < 0 {
		return "", p.errorf("unterminated string")
	}
	v := p.s[p.pos+1 : p.pos+1+end]
	if strings.ContainsRune(v, '\\') {
		return "", p.errorf("escape sequences are not supported")
	}
	p.pos += end + 2
	return v, nil
}

func (p *dictParser) boolean() (bool, error) {
	p.skipSpace()
	switch {
	case strings.HasPrefix(p.s[p.pos:], "True"):
		p.pos += 4
		return true, nil
	case strings.HasPrefix(p.s[p.pos:], "False"):
		p.pos += 5
		return false, nil
	}
	return false, p.errorf("expected True or False")
}

func (p *dictParser) tuple() ([]int, error) {
	if !p.consume('(') {
		return nil, p.errorf("expected '('")
	}
	shape := []int{}
	for {
		if p.consume(')') {
			return shape, nil
		}
		p.skipSpace()
		start := p.pos
		for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
			p.pos++
		}
		if start == p.pos {
			return nil, p.errorf("expected dimension")
		}
		d, err := strconv.Atoi(p.s[start:p.pos])
		if err != nil {
			return nil, p.errorf("bad dimension: %v", err)
		}
		shape = append(shape, d)

		if p.consume(',') {
			continue
		}
		if p.consume(')') {
			// "(3)" is a parenthesised int in python, not a tuple.
			if len(shape) == 1 {
				return nil, p.errorf("1-d shape requires a trailing comma")
			}
			return shape, nil
		}
		return nil, p.errorf("expected ',' or ')'")
	}
}
