package pipeline

import "fmt"

// State is the lifecycle state of a controller.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateFinished
	StateCancelled
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// Terminal reports whether the run has ended.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateCancelled || s == StateErrored
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(b []byte) error {
	for st := StateIdle; st <= StateErrored; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}
