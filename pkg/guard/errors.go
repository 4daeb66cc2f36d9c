package guard

import (
	"errors"
	"fmt"

	"valhalla-hq/heimdall/pkg/engine"
)

// Block codes. Gate codes are carried over from golive unchanged.
const (
	CodeEngineNotActive = "ENGINE_NOT_ACTIVE"
	CodeClearanceStale  = "CLEARANCE_STALE"
)

// ReasonEngineNotActive is the verbatim reason for an engine-state block.
const ReasonEngineNotActive = "engine not in ACTIVE state"

// ErrEngineBlocked matches every *EngineBlockedError via errors.Is.
var ErrEngineBlocked = errors.New("engine action blocked")

// EngineBlockedError is the single failure type of the guard. Reason is meant
// to be shown to operators verbatim; Code distinguishes engine-state blocks
// from kill switch and go-live blocks.
type EngineBlockedError struct {
	EngineName string
	Action     string
	State      engine.State
	Code       string
	Reason     string

	// Cause is the underlying gate error, if any.
	Cause error
}

// Error implements the error interface.
func (e *EngineBlockedError) Error() string {
	return fmt.Sprintf("engine %q blocked from %s in state %s: %s",
		e.EngineName, e.Action, e.State, e.Reason)
}

// Unwrap returns the underlying gate error.
func (e *EngineBlockedError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrEngineBlocked) true.
func (e *EngineBlockedError) Is(target error) bool {
	return target == ErrEngineBlocked
}
