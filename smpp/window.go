package smpp

import (
	"context"
	"sync"
	"time"
)

// DefaultWindowSize is the number of server originated requests that may wait
// for a response at the same time on one session.
const DefaultWindowSize = 10

// PendingRequest is a server originated request waiting for its response.
type PendingRequest struct {
	Request *Packet
	Created time.Time
	Expires time.Time // zero when the entry never expires on its own

	seq    uint32
	expiry *time.Timer
	done   chan struct{}
	once   sync.Once
	resp   *Packet
	err    error
}

// Done is closed once a response, a timeout or a cancellation arrived.
func (p *PendingRequest) Done() <-chan struct{} { return p.done }

// Result returns the response or the error that resolved the request. It is
// only meaningful after Done is closed.
func (p *PendingRequest) Result() (*Packet, error) { return p.resp, p.err }

func (p *PendingRequest) finish(resp *Packet, err error) {
	p.once.Do(func() {
		if p.expiry != nil {
			p.expiry.Stop()
		}
		p.resp, p.err = resp, err
		close(p.done)
	})
}

// Window correlates responses with the requests that were sent, by sequence
// number. At most one request per sequence number is pending at a time.
type Window struct {
	mu      sync.Mutex
	pending map[uint32]*PendingRequest
	slots   chan struct{}
}

// NewWindow returns a window with room for size pending requests.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{
		pending: make(map[uint32]*PendingRequest),
		slots:   make(chan struct{}, size),
	}
}

// Offer registers req under seq. It waits up to acquireTimeout for a free
// slot. When expiryTimeout is positive the entry is dropped with ErrTimeout if
// nobody completed it in time.
func (w *Window) Offer(seq uint32, req *Packet, acquireTimeout, expiryTimeout time.Duration) (*PendingRequest, error) {
	w.mu.Lock()
	_, busy := w.pending[seq]
	w.mu.Unlock()
	if busy {
		return nil, ErrSequenceInUse
	}

	if err := w.acquire(acquireTimeout); err != nil {
		return nil, err
	}

	now := time.Now()
	p := &PendingRequest{
		Request: req,
		Created: now,
		seq:     seq,
		done:    make(chan struct{}),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.pending[seq]; busy {
		<-w.slots
		return nil, ErrSequenceInUse
	}
	if expiryTimeout > 0 {
		p.Expires = now.Add(expiryTimeout)
		p.expiry = time.AfterFunc(expiryTimeout, func() { w.remove(p, ErrTimeout) })
	}
	w.pending[seq] = p
	return p, nil
}

func (w *Window) acquire(timeout time.Duration) error {
	select {
	case w.slots <- struct{}{}:
		return nil
	default:
	}
	if timeout <= 0 {
		return ErrWindowFull
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case w.slots <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrWindowFull
	}
}

// remove drops p if it is still the entry for its sequence number and resolves
// it with err. Resolution is a no-op when p was already completed.
func (w *Window) remove(p *PendingRequest, err error) {
	w.mu.Lock()
	if w.pending[p.seq] == p {
		delete(w.pending, p.seq)
		<-w.slots
	}
	w.mu.Unlock()
	p.finish(nil, err)
}

// Complete hands resp to the request pending under seq. It reports false when
// nothing was waiting (late or duplicate response).
func (w *Window) Complete(seq uint32, resp *Packet) bool {
	w.mu.Lock()
	p, ok := w.pending[seq]
	if ok {
		delete(w.pending, seq)
		<-w.slots
	}
	w.mu.Unlock()
	if !ok {
		return false
	}
	p.finish(resp, nil)
	return true
}

// Await blocks until p is resolved, ctx is done or timeout elapses. On timeout
// the entry is removed and ErrTimeout returned; a response arriving later is
// reported as stale by Complete.
func (w *Window) Await(ctx context.Context, p *PendingRequest, timeout time.Duration) (*Packet, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-p.done:
	case <-expired:
		w.remove(p, ErrTimeout)
	case <-ctx.Done():
		w.remove(p, ctx.Err())
	}
	return p.Result()
}

// Cancel resolves the request pending under seq with err.
func (w *Window) Cancel(seq uint32, err error) bool {
	w.mu.Lock()
	p, ok := w.pending[seq]
	w.mu.Unlock()
	if !ok {
		return false
	}
	w.remove(p, err)
	return true
}

// CancelAll resolves every pending request with err.
func (w *Window) CancelAll(err error) {
	w.mu.Lock()
	all := make([]*PendingRequest, 0, len(w.pending))
	for seq, p := range w.pending {
		all = append(all, p)
		delete(w.pending, seq)
		<-w.slots
	}
	w.mu.Unlock()
	for _, p := range all {
		p.finish(nil, err)
	}
}

// Len returns the number of pending requests.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
