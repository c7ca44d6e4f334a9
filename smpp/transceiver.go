package smpp

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"
)

var (
	ErrBindResp   = errors.New("smpp: unexpected bind response")
	ErrELResponse = errors.New("smpp: enquire_link response timeout")
)

// Transceiver is a minimal ESME (client) side of the protocol. smppd uses
// it to talk to itself in tests and for the check command.
type Transceiver struct {
	conn      net.Conn
	sequence  *atomic.Uint32
	bound     *atomic.Bool
	MaxLength uint32

	writeMu      sync.Mutex
	mu           sync.Mutex
	eLTicker     *time.Ticker // Enquire Link ticker
	eLCheckTimer *time.Timer  // Enquire Link Check timer
	err          error        // error that made a background routine close the connection

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to an SMPP server, with TLS when config is not nil.
func Dial(addr string, config *tls.Config) (*Transceiver, error) {
	var (
		conn net.Conn
		err  error
	)
	if config != nil {
		conn, err = tls.Dial("tcp", addr, config)
	} else {
		conn, err = net.Dial("tcp", addr)
	}
	if err != nil {
		return nil, err
	}
	return NewTransceiver(conn), nil
}

// NewTransceiver wraps an established connection.
func NewTransceiver(conn net.Conn) *Transceiver {
	return &Transceiver{
		conn:     conn,
		sequence: atomic.NewUint32(0),
		bound:    atomic.NewBool(false),
		closed:   make(chan struct{}),
	}
}

// Bound reports whether a bind succeeded and no unbind or close followed.
func (t *Transceiver) Bound() bool { return t.bound.Load() }

// Err returns the error that made the enquire_link routine close the
// connection, if any.
func (t *Transceiver) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Write sends p, assigning the next sequence number when it has none.
func (t *Transceiver) Write(p *Packet) (uint32, error) {
	if p.Sequence == 0 && p.IsRequest() {
		p.Sequence = t.sequence.Inc()
	}
	data, err := Encode(p)
	if err != nil {
		return 0, err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.conn.Write(data); err != nil {
		return 0, err
	}
	return p.Sequence, nil
}

// ReadPacket reads the next PDU without any automatic handling.
func (t *Transceiver) ReadPacket() (*Packet, error) {
	return ReadPacket(t.conn, t.MaxLength)
}

// Bind sends a bind of the given kind and waits for its response. It must be
// called before any reading goroutine is started.
func (t *Transceiver) Bind(id CommandID, systemID, password string) (*Packet, error) {
	seq, err := t.Write(NewBind(id, systemID, password))
	if err != nil {
		return nil, err
	}
	resp, err := t.ReadPacket()
	if err != nil {
		return nil, err
	}
	if resp.CommandID != id.Response() || resp.Sequence != seq {
		return resp, ErrBindResp
	}
	if !resp.Status.Ok() {
		return resp, fmt.Errorf("smpp: bind refused: %w", resp.Status)
	}
	t.bound.Store(true)
	return resp, nil
}

// SubmitSm sends a submit_sm and returns its sequence number.
func (t *Transceiver) SubmitSm(source, dest string, message []byte, registeredDelivery uint8) (uint32, error) {
	p := NewSubmitSm(source, dest, message)
	p.ShortMessage().RegisteredDelivery = registeredDelivery
	return t.Write(p)
}

func (t *Transceiver) DeliverSmResp(seq uint32, status CommandStatus) error {
	_, err := t.Write(&Packet{
		CommandID: DELIVER_SM_RESP,
		Status:    status,
		Sequence:  seq,
		Body:      &MessageIDResp{},
	})
	return err
}

func (t *Transceiver) Unbind() (uint32, error) { return t.Write(NewUnbind()) }

func (t *Transceiver) UnbindResp(seq uint32) error {
	_, err := t.Write(&Packet{CommandID: UNBIND_RESP, Sequence: seq})
	if err != nil {
		return err
	}
	t.bound.Store(false)
	return nil
}

func (t *Transceiver) GenericNack(seq uint32, status CommandStatus) error {
	_, err := t.Write(NewGenericNack(seq, status))
	return err
}

// StartEnquireLink sends enquire_link every eli and closes the connection when
// no response arrives within half the interval. Responses are noticed by Read.
func (t *Transceiver) StartEnquireLink(eli time.Duration) {
	t.mu.Lock()
	t.eLTicker = time.NewTicker(eli)
	t.eLCheckTimer = time.NewTimer(eli / 2)
	t.eLCheckTimer.Stop()
	ticker, check := t.eLTicker, t.eLCheckTimer
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				if _, err := t.Write(NewEnquireLink()); err != nil {
					t.fail(err)
					return
				}
				check.Reset(eli / 2)
			case <-check.C:
				t.fail(ErrELResponse)
				return
			case <-t.closed:
				return
			}
		}
	}()
}

func (t *Transceiver) fail(err error) {
	t.mu.Lock()
	if t.err == nil {
		t.err = err
	}
	t.mu.Unlock()
	t.Close()
}

// Read returns the next PDU. enquire_link and unbind from the server are
// answered automatically; an unbind also closes the connection after the
// answer. An accepted unbind_resp clears Bound.
func (t *Transceiver) Read() (*Packet, error) {
	p, err := t.ReadPacket()
	if err != nil {
		var derr *DecodeError
		if errors.As(err, &derr) && !derr.Fatal && !derr.CommandID.IsResponse() {
			t.GenericNack(derr.Sequence, derr.Status)
		}
		return nil, err
	}
	switch p.CommandID {
	case ENQUIRE_LINK:
		if _, err := t.Write(p.Reply(ESME_ROK)); err != nil {
			return nil, err
		}
	case ENQUIRE_LINK_RESP:
		t.mu.Lock()
		if t.eLCheckTimer != nil {
			t.eLCheckTimer.Stop()
		}
		t.mu.Unlock()
	case UNBIND_RESP:
		if p.Status.Ok() {
			t.bound.Store(false)
		}
	case UNBIND:
		t.UnbindResp(p.Sequence)
		t.Close()
	}
	return p, nil
}

func (t *Transceiver) Close() error {
	t.mu.Lock()
	if t.eLCheckTimer != nil {
		t.eLCheckTimer.Stop()
	}
	if t.eLTicker != nil {
		t.eLTicker.Stop()
	}
	t.mu.Unlock()
	t.bound.Store(false)
	t.closeOnce.Do(func() { close(t.closed) })
	return t.conn.Close()
}
