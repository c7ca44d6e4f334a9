package sms

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

var ErrUDH = errors.New("sms: malformed user data header")

// Part is one segment of a concatenated message.
type Part struct {
	Ref   uint16 // concatenated message reference
	Total uint8  // number of parts
	Seq   uint8  // this part, from 1
	Body  []byte // user data without the header
}

// SplitUDH reads the concatenation element of a short_message sent with the
// UDHI flag. Both the 8 bit (IEI 0x00) and 16 bit (IEI 0x08) references are
// understood.
func SplitUDH(msg []byte) (Part, error) {
	if len(msg) < 1 || len(msg) < 1+int(msg[0]) {
		return Part{}, ErrUDH
	}
	udh, body := msg[1:1+int(msg[0])], msg[1+int(msg[0]):]
	for len(udh) >= 2 {
		iei, n := udh[0], int(udh[1])
		if len(udh) < 2+n {
			return Part{}, ErrUDH
		}
		data := udh[2 : 2+n]
		switch {
		case iei == 0x00 && n == 3:
			return Part{Ref: uint16(data[0]), Total: data[1], Seq: data[2], Body: body}, nil
		case iei == 0x08 && n == 4:
			return Part{Ref: uint16(data[0])<<8 | uint16(data[1]), Total: data[2], Seq: data[3], Body: body}, nil
		}
		udh = udh[2+n:]
	}
	return Part{}, ErrUDH
}

type partKey struct {
	origin string
	ref    uint16
}

type partial struct {
	parts    [][]byte
	received int
	started  time.Time
}

// Assembler joins concatenated messages part by part. Parts that stay
// incomplete longer than MaxAge are dropped.
type Assembler struct {
	MaxAge time.Duration

	mu       sync.Mutex
	incoming map[partKey]*partial // cache for incoming messages
}

// Add stores p received from origin. It returns the whole user data once the
// last missing part arrived.
func (a *Assembler) Add(origin string, p Part) ([]byte, bool) {
	if p.Total <= 1 {
		return p.Body, true
	}
	if p.Seq == 0 || p.Seq > p.Total {
		return nil, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.incoming == nil {
		a.incoming = make(map[partKey]*partial)
	}
	a.expire()
	key := partKey{origin, p.Ref}
	msgs, ok := a.incoming[key]
	if !ok || len(msgs.parts) != int(p.Total) {
		msgs = &partial{parts: make([][]byte, p.Total), started: time.Now()}
		a.incoming[key] = msgs
	}
	if msgs.parts[p.Seq-1] == nil {
		msgs.received++
	}
	msgs.parts[p.Seq-1] = p.Body
	if msgs.received < int(p.Total) {
		return nil, false
	}
	delete(a.incoming, key)
	return bytes.Join(msgs.parts, nil), true
}

// Pending returns the number of incomplete messages.
func (a *Assembler) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.incoming)
}

func (a *Assembler) expire() {
	if a.MaxAge <= 0 {
		return
	}
	for key, msgs := range a.incoming {
		if time.Since(msgs.started) > a.MaxAge {
			delete(a.incoming, key)
		}
	}
}
