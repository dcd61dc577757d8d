package bridge

// State is the lifecycle position of a call session.
//
//	INITIALIZING -> NEGOTIATING -> ACTIVE -> CLOSING -> CLOSED
//
// Every failure path goes through CLOSING and ends in CLOSED.
type State int32

const (
	StateInitializing State = iota
	StateNegotiating
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateNegotiating:
		return "NEGOTIATING"
	case StateActive:
		return "ACTIVE"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
