package client

import "fmt"

// NetworkError wraps a transport-level failure. Polls keep their last known
// good state on it; lifecycle commands surface it and re-enable controls.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ConflictError reports a duplicate create or an invalid transition, locally
// detected or answered by the backend with 409. It is never retried
// automatically.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Message
}

// ValidationError reports malformed command arguments, caught before any
// network call is made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Message
}
