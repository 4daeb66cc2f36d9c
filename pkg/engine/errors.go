package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition matches every *InvalidTransitionError via errors.Is.
	ErrInvalidTransition = errors.New("invalid engine state transition")

	// ErrConflict indicates the stored record changed between read and write.
	ErrConflict = errors.New("engine record changed concurrently")

	// ErrChangedByRequired indicates a transition without an identifiable operator.
	ErrChangedByRequired = errors.New("changed_by is required")

	// ErrEmptyKey indicates an empty engine key.
	ErrEmptyKey = errors.New("engine key cannot be empty")
)

// InvalidTransitionError reports a transition that is not in the allowed table.
type InvalidTransitionError struct {
	Current State
	Target  State
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid engine state transition %s -> %s (allowed: %v)",
		e.Current, e.Target, AllowedNextStates(e.Current))
}

// Is makes errors.Is(err, ErrInvalidTransition) true.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
