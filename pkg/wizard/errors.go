package wizard

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a phase failure for the operator: whether a plain
// re-run is likely to succeed or something needs fixing first.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed on
	// retry. Examples: network timeouts, a deployment still settling.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassConflict indicates a resource state conflict that a re-run
	// resolves once the conflicting actor finishes.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent indicates a non-recoverable error. Examples: bad
	// credentials, invalid configuration, permission denied.
	ErrorClassPermanent ErrorClass = "permanent"
)

// ErrInterrupted marks a run stopped by the operator. Progress up to the
// interrupted phase is checkpointed.
var ErrInterrupted = errors.New("setup interrupted, progress has been saved")

// PhaseError is a classified failure of one setup phase.
type PhaseError struct {
	Phase string
	Class ErrorClass
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("[%s] phase %s failed: %s", e.Class, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

func phaseErr(phase string, class ErrorClass, err error) *PhaseError {
	return &PhaseError{Phase: phase, Class: class, Err: err}
}
