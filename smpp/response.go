package smpp

// Response is what a Processor answers a request with. MessageID is only
// used for submit_sm.
type Response struct {
	Status    CommandStatus
	MessageID string
}

// OK is the success response.
var OK = Response{Status: ESME_ROK}

// ResponseSender delivers the answer to one inbound request. Only the first
// Send reaches the wire; later calls log a warning and return.
type ResponseSender interface {
	Send(Response)
}

// SessionOf returns the session that received the request rs answers, or nil
// when rs does not come from a Session.
func SessionOf(rs ResponseSender) *Session {
	if r, ok := rs.(interface{ Session() *Session }); ok {
		return r.Session()
	}
	return nil
}

// Processor reacts to inbound requests. Process may answer inline or keep rs
// and answer later from another goroutine.
type Processor interface {
	Process(req *Packet, rs ResponseSender)
}

// ProcessorFunc adapts an ordinary function to the Processor interface.
type ProcessorFunc func(req *Packet, rs ResponseSender)

func (f ProcessorFunc) Process(req *Packet, rs ResponseSender) { f(req, rs) }

// DefaultProcessor answers every request with ESME_ROK.
type DefaultProcessor struct{}

func (DefaultProcessor) Process(_ *Packet, rs ResponseSender) { rs.Send(OK) }
