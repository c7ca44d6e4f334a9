package smpp

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// responder is the one-shot ResponseSender handed to a Processor together
// with one request.
type responder struct {
	session *Session
	req     *Packet

	mu    sync.Mutex
	sent  bool
	timer *time.Timer
}

func newResponder(s *Session, req *Packet) *responder {
	return &responder{session: s, req: req}
}

func (r *responder) Session() *Session { return r.session }

// claim marks the response as sent. Only the first caller gets true.
func (r *responder) claim() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent {
		return false
	}
	r.sent = true
	if r.timer != nil {
		r.timer.Stop()
	}
	return true
}

// Send answers the request. Calls after the first are ignored with a warning.
func (r *responder) Send(resp Response) {
	if !r.claim() {
		r.session.log().WithFields(logrus.Fields{
			"command":  r.req.CommandID.String(),
			"sequence": r.req.Sequence,
			"status":   resp.Status.String(),
		}).Warn("Response already sent, ignored")
		return
	}
	r.session.respond(r.req, resp)
}

// deadline answers with status when the processor stays silent for d.
func (r *responder) deadline(d time.Duration, status CommandStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent {
		return
	}
	r.timer = time.AfterFunc(d, func() {
		r.fail(status, "Processor did not answer in time")
	})
}

// fail answers with status unless a response already went out.
func (r *responder) fail(status CommandStatus, reason string) {
	if !r.claim() {
		return
	}
	r.session.log().WithFields(logrus.Fields{
		"command":  r.req.CommandID.String(),
		"sequence": r.req.Sequence,
	}).Warn(reason)
	r.session.respond(r.req, Response{Status: status})
}
