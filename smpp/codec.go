package smpp

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Encode serializes p into a complete PDU including the command_length header.
func Encode(p *Packet) ([]byte, error) {
	w := new(writer)
	w.uint32(0) // command_length, patched below
	w.uint32(uint32(p.CommandID))
	w.uint32(uint32(p.Status))
	w.uint32(p.Sequence)
	if p.Body != nil {
		if err := p.Body.encode(w); err != nil {
			return nil, fmt.Errorf("smpp: encode %s: %w", p.CommandID, err)
		}
	}
	if err := p.Options.encode(w); err != nil {
		return nil, fmt.Errorf("smpp: encode %s: %w", p.CommandID, err)
	}
	data := w.data()
	binary.BigEndian.PutUint32(data[0:4], uint32(len(data)))
	return data, nil
}

type header struct {
	length   uint32
	id       CommandID
	status   CommandStatus
	sequence uint32
}

func parseHeader(b []byte) header {
	return header{
		length:   binary.BigEndian.Uint32(b[0:4]),
		id:       CommandID(binary.BigEndian.Uint32(b[4:8])),
		status:   CommandStatus(binary.BigEndian.Uint32(b[8:12])),
		sequence: binary.BigEndian.Uint32(b[12:16]),
	}
}

// Decode parses one complete PDU. Failures are returned as *DecodeError.
func Decode(data []byte) (*Packet, error) {
	if len(data) < HeaderLength {
		return nil, &DecodeError{
			Status: ESME_RINVCMDLEN,
			Fatal:  true,
			Err:    fmt.Errorf("pdu of %d bytes is shorter than the header", len(data)),
		}
	}
	h := parseHeader(data)
	if int(h.length) != len(data) {
		return nil, &DecodeError{
			CommandID: h.id,
			Sequence:  h.sequence,
			Status:    ESME_RINVCMDLEN,
			Fatal:     true,
			Err:       fmt.Errorf("command_length %d does not match %d bytes", h.length, len(data)),
		}
	}
	return decodeBody(h, data[HeaderLength:])
}

func decodeBody(h header, data []byte) (*Packet, error) {
	if !h.id.Known() {
		return nil, &DecodeError{
			CommandID: h.id,
			Sequence:  h.sequence,
			Status:    ESME_RINVCMDID,
			Err:       ErrUnrecognizedCommand,
		}
	}
	p := &Packet{
		CommandID: h.id,
		Status:    h.status,
		Sequence:  h.sequence,
		Body:      newBody(h.id),
	}
	r := &reader{data: data}
	if p.Body != nil {
		if err := p.Body.decode(r); err != nil {
			return nil, &DecodeError{
				CommandID: h.id,
				Sequence:  h.sequence,
				Status:    ESME_RINVCMDLEN,
				Err:       err,
			}
		}
	}
	if rest := r.rest(); len(rest) > 0 {
		opts, err := decodeOptions(rest)
		if err != nil {
			return nil, &DecodeError{
				CommandID: h.id,
				Sequence:  h.sequence,
				Status:    ESME_RINVOPTPARSTREAM,
				Err:       err,
			}
		}
		p.Options = opts
	}
	return p, nil
}

// ReadPacket reads exactly one PDU from r. A command_length outside
// [HeaderLength, maxLen] is a fatal *DecodeError: the stream cannot be
// resynchronized after it. Transport errors are returned unchanged.
func ReadPacket(r io.Reader, maxLen uint32) (*Packet, error) {
	if maxLen == 0 {
		maxLen = DefaultMaxLength
	}
	var hdr [HeaderLength]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	h := parseHeader(hdr[:])
	if h.length < HeaderLength || h.length > maxLen {
		return nil, &DecodeError{
			CommandID: h.id,
			Sequence:  h.sequence,
			Status:    ESME_RINVCMDLEN,
			Fatal:     true,
			Err:       fmt.Errorf("command_length %d out of range [%d, %d]", h.length, HeaderLength, maxLen),
		}
	}
	body := make([]byte, h.length-HeaderLength)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return decodeBody(h, body)
}
