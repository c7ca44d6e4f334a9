package smpp

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBound is returned when an operation needs a bound session.
	ErrNotBound = errors.New("smpp: session is not bound")
	// ErrClosed is returned by operations on a closed session and delivered to
	// requests still pending when the session closes.
	ErrClosed = errors.New("smpp: session closed")
	// ErrTimeout means the client did not answer a request in time.
	ErrTimeout = errors.New("smpp: timeout waiting for response")
	// ErrCanceled is delivered to a pending request withdrawn by its owner.
	ErrCanceled = errors.New("smpp: request canceled")
	// ErrInvalidCommand is returned when the server is asked to originate a
	// command it is not allowed to send to a client.
	ErrInvalidCommand = errors.New("smpp: command cannot be originated by the server")
	// ErrSequenceInUse means a sequence number is already waiting for a response.
	ErrSequenceInUse = errors.New("smpp: sequence number already pending")
	// ErrWindowFull means no window slot became free within the acquire timeout.
	ErrWindowFull = errors.New("smpp: request window full")
	// ErrUnrecognizedCommand is wrapped by DecodeError for command ids outside the catalog.
	ErrUnrecognizedCommand = errors.New("smpp: unrecognized command id")
	// ErrServerClosed is returned by Serve after Stop.
	ErrServerClosed = errors.New("smpp: server closed")
)

// DecodeError describes a PDU the codec could not turn into a Packet. The header
// fields that could be parsed are kept so the engine can still answer with a
// correlated error response.
type DecodeError struct {
	CommandID CommandID
	Sequence  uint32
	Status    CommandStatus // status to answer with
	Fatal     bool          // framing lost, the stream cannot be resynchronized
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("smpp: decode %s seq=%d: %v", e.CommandID, e.Sequence, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
