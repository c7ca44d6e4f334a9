package smpp

import (
	"github.com/looplab/fsm"
)

// State is the bind status of a session.
type State string

const (
	StateOpen    State = "open"    // connected, waiting for a bind
	StateBound   State = "bound"   // bind accepted
	StateClosing State = "closing" // server sent unbind, waiting for unbind_resp
	StateClosed  State = "closed"  // terminal
)

func (s State) String() string { return string(s) }

// state machine events
const (
	eventBind   = "bind"
	eventUnbind = "unbind"
	eventClose  = "close"
)

// newStateMachine returns the session state machine. onEnter is called after
// every successful transition; it must not fire further events.
func newStateMachine(onEnter fsm.Callback) *fsm.FSM {
	return fsm.NewFSM(
		string(StateOpen),
		fsm.Events{
			{Name: eventBind, Src: []string{string(StateOpen)}, Dst: string(StateBound)},
			{Name: eventUnbind, Src: []string{string(StateBound)}, Dst: string(StateClosing)},
			{Name: eventClose, Src: []string{string(StateOpen), string(StateBound), string(StateClosing)}, Dst: string(StateClosed)},
		},
		fsm.Callbacks{
			"enter_state": onEnter,
		},
	)
}
