package run

// State is a phase of the run state machine
type State int

const (
	StateConfiguring State = iota
	StateScanning
	StatePlanning
	StateAwaitingConfirmation
	StateExecuting
	StateFinishedEmpty
	StateFinishedDeclined
	StateFinishedSummary
)

func (s State) String() string {
	switch s {
	case StateConfiguring:
		return "configuring"
	case StateScanning:
		return "scanning"
	case StatePlanning:
		return "planning"
	case StateAwaitingConfirmation:
		return "awaiting-confirmation"
	case StateExecuting:
		return "executing"
	case StateFinishedEmpty:
		return "finished-empty"
	case StateFinishedDeclined:
		return "finished-declined"
	case StateFinishedSummary:
		return "finished-summary"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name in reports
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the run ends in s
func (s State) Terminal() bool {
	switch s {
	case StateFinishedEmpty, StateFinishedDeclined, StateFinishedSummary:
		return true
	}
	return false
}

// transitions lists the legal next states. Every edge moves forward.
var transitions = map[State][]State{
	StateConfiguring:          {StateScanning},
	StateScanning:             {StatePlanning},
	StatePlanning:             {StateAwaitingConfirmation, StateFinishedEmpty},
	StateAwaitingConfirmation: {StateExecuting, StateFinishedDeclined},
	StateExecuting:            {StateFinishedSummary},
}

// CanTransition reports whether the machine may move from one state to another
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
