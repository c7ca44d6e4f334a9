package smpp

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// TLV is an optional parameter: tag, length and value.
type TLV struct {
	Tag   uint16
	Value []byte
}

// StringTLV builds a C-Octet String parameter (NUL terminated).
func StringTLV(tag uint16, s string) TLV {
	return TLV{Tag: tag, Value: append([]byte(s), 0)}
}

func Uint8TLV(tag uint16, v uint8) TLV { return TLV{Tag: tag, Value: []byte{v}} }

func Uint16TLV(tag uint16, v uint16) TLV {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return TLV{Tag: tag, Value: b}
}

// Text returns the value up to the first NUL byte.
func (t TLV) Text() string {
	if i := bytes.IndexByte(t.Value, 0); i >= 0 {
		return string(t.Value[:i])
	}
	return string(t.Value)
}

func (t TLV) Uint8() (uint8, error) {
	if len(t.Value) != 1 {
		return 0, fmt.Errorf("smpp: tlv 0x%04X: %d bytes is not a uint8", t.Tag, len(t.Value))
	}
	return t.Value[0], nil
}

func (t TLV) Uint16() (uint16, error) {
	if len(t.Value) != 2 {
		return 0, fmt.Errorf("smpp: tlv 0x%04X: %d bytes is not a uint16", t.Tag, len(t.Value))
	}
	return binary.BigEndian.Uint16(t.Value), nil
}

func (t TLV) Uint32() (uint32, error) {
	if len(t.Value) != 4 {
		return 0, fmt.Errorf("smpp: tlv 0x%04X: %d bytes is not a uint32", t.Tag, len(t.Value))
	}
	return binary.BigEndian.Uint32(t.Value), nil
}

// Options is the ordered optional parameter list of a PDU. Duplicated tags are
// kept; lookups return the first match.
type Options []TLV

// Get returns the first parameter carrying tag.
func (o Options) Get(tag uint16) (TLV, bool) {
	for _, t := range o {
		if t.Tag == tag {
			return t, true
		}
	}
	return TLV{}, false
}

// Add appends a parameter.
func (o *Options) Add(t TLV) { *o = append(*o, t) }

func (o Options) encode(w *writer) error {
	for _, t := range o {
		if len(t.Value) > 0xFFFF {
			return fmt.Errorf("smpp: tlv 0x%04X value too long (%d)", t.Tag, len(t.Value))
		}
		w.uint16(t.Tag)
		w.uint16(uint16(len(t.Value)))
		w.raw(t.Value)
	}
	return nil
}

func decodeOptions(data []byte) (Options, error) {
	var opts Options
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, fmt.Errorf("smpp: truncated tlv header (%d bytes)", len(data))
		}
		tag := binary.BigEndian.Uint16(data[0:2])
		n := int(binary.BigEndian.Uint16(data[2:4]))
		if len(data) < 4+n {
			return nil, fmt.Errorf("smpp: tlv 0x%04X length %d exceeds %d remaining bytes", tag, n, len(data)-4)
		}
		value := make([]byte, n)
		copy(value, data[4:4+n])
		opts = append(opts, TLV{Tag: tag, Value: value})
		data = data[4+n:]
	}
	return opts, nil
}
