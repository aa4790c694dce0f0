package dispatch

// State is a dispatch loop state.
type State int

const (
	StateStart State = iota
	StateThinking
	StateCalling
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateThinking:
		return "thinking"
	case StateCalling:
		return "calling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
