package orchestrator

import "fmt"

// State is a step of the per-turn state machine.
type State int

const (
	StateAwaitingInput State = iota
	StateExtracting
	StateMerging
	StateCoverageUpdate
	StateSelectingNext
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "awaiting_input"
	case StateExtracting:
		return "extracting"
	case StateMerging:
		return "merging"
	case StateCoverageUpdate:
		return "coverage_update"
	case StateSelectingNext:
		return "selecting_next"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateAwaitingInput; st <= StateComplete; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}
