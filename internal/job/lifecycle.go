package job

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of a record.
type State string

const (
	StateCreated   State = "CREATED"
	StateRunning   State = "RUNNING"
	StatePaused    State = "PAUSED"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

// ErrInvalidTransition is returned for any lifecycle move outside the allowed
// graph. Callers short-circuit on it locally instead of issuing a doomed
// backend request.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

var terminalStates = map[State]bool{
	StateCompleted: true,
	StateFailed:    true,
	StateCancelled: true,
}

var allowedTransitions = map[State]map[State]bool{
	StateCreated: {
		StateRunning:   true,
		StateCancelled: true,
	},
	StateRunning: {
		StatePaused:    true,
		StateCompleted: true,
		StateFailed:    true,
		StateCancelled: true,
	},
	StatePaused: {
		StateRunning:   true,
		StateCancelled: true,
	},
}

// Terminal reports whether no further transition is possible. Restart is not a
// transition: it produces a new record and never mutates a terminal one.
func (s State) Terminal() bool {
	return terminalStates[s]
}

// ValidateTransition gates every lifecycle move.
func ValidateTransition(from, to State) error {
	if terminalStates[from] {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}

	if allowed, ok := allowedTransitions[from][to]; !ok || !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	return nil
}
