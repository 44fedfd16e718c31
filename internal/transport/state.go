package transport

// State represents the lifecycle of a connection
type State int32

const (
	StateOpen State = iota
	StateServing
	StateClosing
	StateAborted
	StateClosed
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateOpen:
		return "Open"
	case StateServing:
		return "Serving"
	case StateClosing:
		return "Closing"
	case StateAborted:
		return "Aborted"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further I/O is valid in this state
func (s State) Terminal() bool {
	return s == StateClosed
}

func (s State) canMoveTo(next State) bool {
	switch s {
	case StateClosed, StateAborted:
		return false
	case StateClosing:
		return next == StateAborted
	default:
		return true
	}
}
