package deposit

import "fmt"

// State is the position of one invocation in its lifecycle:
//
//	Building -> Signed -> Submitted -> {Confirmed | Rejected | TimedOut}
//
// Nothing moves backwards and nothing is retried; a new invocation starts a
// new machine.
type State int

const (
	StateBuilding State = iota
	StateSigned
	StateSubmitted
	StateConfirmed
	StateRejected
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateSigned:
		return "signed"
	case StateSubmitted:
		return "submitted"
	case StateConfirmed:
		return "confirmed"
	case StateRejected:
		return "rejected"
	case StateTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether s ends the machine.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateRejected || s == StateTimedOut
}
