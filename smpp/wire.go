package smpp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var errTruncated = errors.New("smpp: truncated pdu body")

// writer accumulates big-endian PDU fields.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) u8(b uint8) { w.buf.WriteByte(b) }

func (w *writer) uint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) raw(b []byte) { w.buf.Write(b) }

// cstring writes s followed by NUL; max counts the terminator.
func (w *writer) cstring(s string, max int) error {
	if len(s)+1 > max {
		return fmt.Errorf("smpp: field %q longer than %d octets", s, max-1)
	}
	w.buf.WriteString(s)
	w.buf.WriteByte(0)
	return nil
}

func (w *writer) data() []byte { return w.buf.Bytes() }

// reader walks a PDU body. The first failure sticks in err and every later
// read returns zero values.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) remaining() int { return len(r.data) - r.pos }

func (r *reader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	if r.remaining() < 1 {
		r.err = errTruncated
		return 0
	}
	b := r.data[r.pos]
	r.pos++
	return b
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.remaining() < n {
		r.err = errTruncated
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b
}

func (r *reader) cstring(max int) string {
	if r.err != nil {
		return ""
	}
	i := bytes.IndexByte(r.data[r.pos:], 0)
	if i < 0 {
		r.err = fmt.Errorf("smpp: c-octet string missing NUL terminator at offset %d", r.pos)
		return ""
	}
	if i+1 > max {
		r.err = fmt.Errorf("smpp: c-octet string of %d octets exceeds %d", i, max-1)
		return ""
	}
	s := string(r.data[r.pos : r.pos+i])
	r.pos += i + 1
	return s
}

func (r *reader) rest() []byte {
	if r.err != nil || r.remaining() == 0 {
		return nil
	}
	b := r.data[r.pos:]
	r.pos = len(r.data)
	return b
}
