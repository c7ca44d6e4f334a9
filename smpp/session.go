package smpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// Session is the server side of one SMPP connection.
type Session struct {
	id      string
	conn    net.Conn
	created time.Time
	config  Config
	window  *Window
	base    *logrus.Entry // without system_id, safe to use from state callbacks

	sequence *atomic.Uint32
	state    *fsm.FSM
	ioErrors int // consecutive read failures, receive goroutine only

	mu        sync.Mutex // bindType, systemID, processor, logger, hooks, bindHooks
	bindType  BindType
	systemID  string
	processor Processor
	logger    *logrus.Entry
	hooks     []func(*Session)
	bindHooks []func(*Session)

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

// NewSession wraps an accepted connection. The session does nothing until
// Serve is called.
func NewSession(conn net.Conn, processor Processor, config Config, logger *logrus.Entry) *Session {
	if processor == nil {
		processor = DefaultProcessor{}
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	config = config.withDefaults()
	id := uuid.NewString()
	s := &Session{
		id:        id,
		conn:      conn,
		created:   time.Now(),
		config:    config,
		window:    NewWindow(config.WindowSize),
		sequence:  atomic.NewUint32(0),
		processor: processor,
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.base = logger.WithFields(logrus.Fields{
		"session": id,
		"remote":  conn.RemoteAddr().String(),
	})
	s.logger = s.base
	s.state = newStateMachine(func(_ context.Context, e *fsm.Event) {
		s.base.WithField("event", e.Event).Debugf("State %s -> %s", e.Src, e.Dst)
	})
	sessionsActive.Inc()
	return s
}

func (s *Session) ID() string           { return s.id }
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }
func (s *Session) CreatedAt() time.Time { return s.created }
func (s *Session) State() State         { return State(s.state.Current()) }

// BindType returns the role the client bound with, BindNone before a bind.
func (s *Session) BindType() BindType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindType
}

// SystemID returns the system_id accepted at bind time.
func (s *Session) SystemID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.systemID
}

func (s *Session) Processor() Processor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processor
}

// SetProcessor replaces the processor for requests read from now on.
// Requests already handed to the previous processor are not affected.
func (s *Session) SetProcessor(p Processor) {
	if p == nil {
		p = DefaultProcessor{}
	}
	s.mu.Lock()
	s.processor = p
	s.mu.Unlock()
}

// Done is closed when Serve returns.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) log() *logrus.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger
}

func (s *Session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// onClose registers fn to run once the session is closed. If it already is,
// fn runs right away.
func (s *Session) onClose(fn func(*Session)) {
	s.mu.Lock()
	if !s.isClosed() {
		s.hooks = append(s.hooks, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn(s)
}

// onBind registers fn to run after each successful bind.
func (s *Session) onBind(fn func(*Session)) {
	s.mu.Lock()
	s.bindHooks = append(s.bindHooks, fn)
	s.mu.Unlock()
}

// requestQueue bounds the requests read ahead of the dispatch worker.
const requestQueue = 64

// Serve runs the receive loop until the connection is closed or fails.
// Responses are completed as they are read. Requests are handed in arrival
// order to a dispatch worker, so a processor may block on SendRequest.
// The session is closed when Serve returns.
func (s *Session) Serve() {
	requests := make(chan *Packet, requestQueue)
	var wg sync.WaitGroup
	defer close(s.done)
	defer wg.Wait()
	defer s.Close()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.dispatchLoop(requests)
	}()

	s.base.Info("Session started")
	r := &frameReader{conn: s.conn, timeout: s.config.ReadTimeout}
	for {
		r.arm()
		p, err := ReadPacket(r, s.config.MaxPacketLength)
		if err != nil {
			var derr *DecodeError
			if errors.As(err, &derr) {
				s.ioErrors = 0
				if !s.decodeFailed(derr) {
					return
				}
				continue
			}
			if s.isClosed() || isDisconnect(err) {
				s.log().WithError(err).Debug("Connection closed")
				return
			}
			s.ioErrors++
			s.log().WithError(err).Warnf("Read error %d of %d", s.ioErrors, s.config.MaxIOErrors)
			if s.ioErrors >= s.config.MaxIOErrors {
				s.log().Error("Too many read errors, closing session")
				return
			}
			continue
		}
		s.ioErrors = 0
		s.received(p)
		if p.IsResponse() {
			s.handleResponse(p)
			continue
		}
		select {
		case requests <- p:
		case <-s.closed:
			return
		}
	}
}

func (s *Session) dispatchLoop(requests <-chan *Packet) {
	for {
		select {
		case req := <-requests:
			s.handleRequest(req)
		case <-s.closed:
			return
		}
	}
}

// frameReader applies the read timeout to the wait for the next PDU only.
// The deadline is lifted once the first byte of a frame is in.
type frameReader struct {
	conn    net.Conn
	timeout time.Duration
	waiting bool
}

func (r *frameReader) arm() {
	if r.timeout <= 0 {
		return
	}
	r.waiting = true
	r.conn.SetReadDeadline(time.Now().Add(r.timeout))
}

func (r *frameReader) Read(b []byte) (int, error) {
	n, err := r.conn.Read(b)
	if n > 0 && r.waiting {
		r.waiting = false
		r.conn.SetReadDeadline(time.Time{})
	}
	return n, err
}

func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed)
}

// decodeFailed answers a PDU the codec rejected. It returns false when the
// stream is no longer usable.
func (s *Session) decodeFailed(derr *DecodeError) bool {
	logEntry := s.log().WithFields(logrus.Fields{
		"command":  derr.CommandID.String(),
		"sequence": derr.Sequence,
	}).WithError(derr.Err)
	recordPDU("in", derr.CommandID)

	if derr.Fatal {
		logEntry.Error("Invalid command length, closing session")
		s.writeResponse(NewGenericNack(derr.Sequence, derr.Status))
		return false
	}
	if derr.CommandID.IsResponse() {
		logEntry.Warn("Malformed response dropped")
		if derr.CommandID.Known() {
			s.window.Cancel(derr.Sequence, derr)
		}
		return true
	}
	logEntry.Warn("Malformed request")
	if errors.Is(derr, ErrUnrecognizedCommand) {
		s.writeResponse(NewGenericNack(derr.Sequence, derr.Status))
		return true
	}
	s.writeResponse(&Packet{
		CommandID: derr.CommandID.Response(),
		Status:    derr.Status,
		Sequence:  derr.Sequence,
	})
	return true
}

func (s *Session) received(p *Packet) {
	recordPDU("in", p.CommandID)
	s.log().WithFields(logrus.Fields{
		"command":  p.CommandID.String(),
		"sequence": p.Sequence,
		"status":   p.Status.String(),
	}).Debug("Received")
}

func (s *Session) handleRequest(p *Packet) {
	switch state := s.State(); {
	case state == StateClosing || state == StateClosed:
		s.log().WithField("command", p.CommandID.String()).Warn("Session is closing, request dropped")
		return
	case p.IsBind() && state == StateBound:
		s.reject(p, ESME_RALYBND)
		return
	case !p.IsBind() && state != StateBound:
		s.reject(p, ESME_RINVBNDSTS)
		return
	}
	s.dispatch(p)
}

func (s *Session) handleResponse(p *Packet) {
	if !s.window.Complete(p.Sequence, p) {
		s.log().WithFields(logrus.Fields{
			"command":  p.CommandID.String(),
			"sequence": p.Sequence,
		}).Warn("Unexpected response, no request pending")
		return
	}
	if p.CommandID == UNBIND_RESP && p.Status.Ok() {
		s.log().Info("Unbind acknowledged")
		s.Close()
	}
}

func (s *Session) reject(req *Packet, status CommandStatus) {
	s.log().WithFields(logrus.Fields{
		"command":  req.CommandID.String(),
		"sequence": req.Sequence,
		"state":    s.State().String(),
		"status":   status.String(),
	}).Warn("Request rejected")
	s.writeResponse(req.Reply(status))
}

// dispatch hands req to the current processor on the dispatch worker.
func (s *Session) dispatch(req *Packet) {
	rs := newResponder(s, req)
	if s.config.ProcessTimeout > 0 {
		rs.deadline(s.config.ProcessTimeout, ESME_RSYSERR)
	}
	defer func() {
		if r := recover(); r != nil {
			s.log().WithFields(logrus.Fields{
				"command":  req.CommandID.String(),
				"sequence": req.Sequence,
				"panic":    r,
			}).Error("Processor failed")
			rs.fail(ESME_RSYSERR, "Answering system error after processor failure")
		}
	}()
	s.Processor().Process(req, rs)
}

// respond turns a processor Response into the wire response to req.
func (s *Session) respond(req *Packet, resp Response) {
	out := req.Reply(resp.Status)
	switch {
	case req.IsBind():
		if resp.Status.Ok() {
			out = s.bound(req, out)
		}
	case req.CommandID == SUBMIT_SM:
		if resp.Status.Ok() {
			id := resp.MessageID
			if id == "" {
				id = uuid.NewString()
			}
			out.Body = &MessageIDResp{MessageID: id}
		}
	}

	s.writeResponse(out)

	if req.CommandID == UNBIND {
		s.log().Info("Unbound by client")
		s.Close()
	}
}

// bound moves the session to the bound state for a successful bind and
// completes the bind response. A bind that lost the race to another one is
// answered with ESME_RALYBND.
func (s *Session) bound(req *Packet, out *Packet) *Packet {
	bind := req.Bind()
	s.mu.Lock()
	err := s.state.Event(context.Background(), eventBind)
	if err == nil {
		s.bindType = bindTypeOf(req.CommandID)
		s.systemID = bind.SystemID
		s.logger = s.base.WithField("system_id", bind.SystemID)
	}
	logger := s.logger
	hooks := s.bindHooks
	s.mu.Unlock()

	if err != nil {
		logger.WithError(err).Warn("Bind refused, session is not open")
		out.Status = ESME_RALYBND
		return out
	}
	logger.WithField("bind", bindTypeOf(req.CommandID).String()).Info("Bound")
	for _, fn := range hooks {
		fn(s)
	}
	out.Body = &BindResp{SystemID: s.config.SystemID}
	if bind.InterfaceVersion >= InterfaceVersion {
		out.Options = Options{Uint8TLV(TagSCInterfaceVersion, InterfaceVersion)}
	}
	return out
}

// writeResponse encodes and writes a response, falling back to a bare
// ESME_RSYSERR when the packet cannot be encoded.
func (s *Session) writeResponse(p *Packet) {
	data, err := Encode(p)
	if err != nil {
		s.log().WithError(err).Error("Encode response")
		p = &Packet{CommandID: p.CommandID, Status: ESME_RSYSERR, Sequence: p.Sequence}
		if data, err = Encode(p); err != nil {
			return
		}
	}
	if err := s.write(p, data); err == nil {
		recordResponse(p.CommandID, p.Status)
	}
}

// write puts one encoded PDU on the wire. A failed write closes the session.
func (s *Session) write(p *Packet, data []byte) error {
	s.writeMu.Lock()
	if s.isClosed() {
		s.writeMu.Unlock()
		return ErrClosed
	}
	if s.config.WriteTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	_, err := s.conn.Write(data)
	s.writeMu.Unlock()

	logEntry := s.log().WithFields(logrus.Fields{
		"command":  p.CommandID.String(),
		"sequence": p.Sequence,
		"status":   p.Status.String(),
	})
	if err != nil {
		logEntry.WithError(err).Error("Write error, closing session")
		s.Close()
		return fmt.Errorf("smpp: write %s: %w", p.CommandID, err)
	}
	recordPDU("out", p.CommandID)
	logEntry.Debug("Sent")
	return nil
}

func (s *Session) nextSequence() uint32 {
	for {
		n := s.sequence.Inc()
		if n >= 1 && n <= MaxSequence {
			return n
		}
		s.sequence.CompareAndSwap(n, 0)
	}
}

// originable lists the requests the server may send to a client.
func originable(id CommandID) bool {
	return id == DELIVER_SM || id == ENQUIRE_LINK || id == UNBIND
}

// SendRequestAsync writes req and registers it in the window without
// waiting. The entry expires after the configured request timeout. A zero
// sequence number is replaced by the next one from the session counter.
func (s *Session) SendRequestAsync(req *Packet) (*PendingRequest, error) {
	if err := s.checkOutbound(req, StateBound); err != nil {
		return nil, err
	}
	return s.offer(req, s.config.RequestTimeout)
}

// SendRequest writes req and waits for the correlated response, up to the
// configured request timeout or until ctx is done. A response with a non-OK
// status is returned as is; the error only reports transport, timeout and
// state failures.
func (s *Session) SendRequest(ctx context.Context, req *Packet) (*Packet, error) {
	if err := s.checkOutbound(req, StateBound); err != nil {
		return nil, err
	}
	return s.roundTrip(ctx, req)
}

func (s *Session) roundTrip(ctx context.Context, req *Packet) (*Packet, error) {
	started := time.Now()
	pending, err := s.offer(req, 0)
	if err != nil {
		recordOutbound(req.CommandID, started, nil, err)
		return nil, err
	}
	resp, err := s.window.Await(ctx, pending, s.config.RequestTimeout)
	recordOutbound(req.CommandID, started, resp, err)
	if errors.Is(err, ErrTimeout) {
		s.log().WithFields(logrus.Fields{
			"command":  req.CommandID.String(),
			"sequence": req.Sequence,
		}).Warn("Response timeout")
	}
	return resp, err
}

func (s *Session) checkOutbound(req *Packet, want State) error {
	if !originable(req.CommandID) {
		return fmt.Errorf("%w: %s", ErrInvalidCommand, req.CommandID)
	}
	switch state := s.State(); {
	case state == StateClosed:
		return ErrClosed
	case state != want:
		return ErrNotBound
	}
	if req.CommandID == DELIVER_SM && !s.BindType().CanReceive() {
		return fmt.Errorf("%w: deliver_sm to a %s", ErrInvalidCommand, s.BindType())
	}
	return nil
}

func (s *Session) offer(req *Packet, expiry time.Duration) (*PendingRequest, error) {
	if req.Sequence == 0 {
		req.Sequence = s.nextSequence()
	}
	data, err := Encode(req)
	if err != nil {
		return nil, err
	}
	pending, err := s.window.Offer(req.Sequence, req, s.config.AcquireTimeout, expiry)
	if err != nil {
		return nil, err
	}
	if err := s.write(req, data); err != nil {
		s.window.Cancel(req.Sequence, err)
		return nil, err
	}
	return pending, nil
}

// EnquireLink checks that the client is alive.
func (s *Session) EnquireLink(ctx context.Context) error {
	resp, err := s.SendRequest(ctx, NewEnquireLink())
	if err != nil {
		return err
	}
	if !resp.Status.Ok() {
		return resp.Status
	}
	return nil
}

// Unbind ends a bound session from the server side: the session stops
// taking requests, sends unbind and closes once the client answered or the
// request failed.
func (s *Session) Unbind(ctx context.Context) error {
	s.mu.Lock()
	err := s.state.Event(context.Background(), eventUnbind)
	s.mu.Unlock()
	if err != nil {
		if s.State() == StateClosed {
			return ErrClosed
		}
		return ErrNotBound
	}
	s.log().Info("Unbinding")

	req := NewUnbind()
	if err := s.checkOutbound(req, StateClosing); err != nil {
		s.Close()
		return err
	}
	resp, err := s.roundTrip(ctx, req)
	s.Close()
	if err != nil {
		return err
	}
	if !resp.Status.Ok() {
		return resp.Status
	}
	return nil
}

// Info is a snapshot of the session for listings.
type Info struct {
	ID         string    `json:"id"`
	RemoteAddr string    `json:"remote"`
	SystemID   string    `json:"systemId,omitempty"`
	BindType   string    `json:"bindType"`
	State      string    `json:"state"`
	Created    time.Time `json:"created"`
	Pending    int       `json:"pending"`
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:         s.id,
		RemoteAddr: s.conn.RemoteAddr().String(),
		SystemID:   s.systemID,
		BindType:   s.bindType.String(),
		State:      s.state.Current(),
		Created:    s.created,
		Pending:    s.window.Len(),
	}
}

// Close tears the session down: the state becomes closed, the connection is
// closed, pending requests fail with ErrClosed and close hooks run. Only the
// first call has an effect.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		_ = s.state.Event(context.Background(), eventClose)
		hooks := s.hooks
		s.hooks = nil
		close(s.closed)
		logger := s.logger
		s.mu.Unlock()

		err = s.conn.Close()
		s.window.CancelAll(ErrClosed)
		sessionsActive.Dec()
		logger.Info("Session closed")
		for _, fn := range hooks {
			fn(s)
		}
	})
	return err
}
