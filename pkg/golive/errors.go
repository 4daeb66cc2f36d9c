package golive

import (
	"errors"
	"fmt"
)

// Block codes surfaced to callers and HTTP clients.
const (
	CodeKillSwitchEngaged = "KILL_SWITCH_ENGAGED"
	CodeGoLiveDisabled    = "GO_LIVE_DISABLED"
)

// Block reasons. They are returned verbatim to operators.
const (
	ReasonKillSwitchEngaged = "kill switch engaged"
	ReasonGoLiveDisabled    = "go-live disabled"
)

var (
	// ErrProdGateBlocked matches every *ProdGateBlockedError via errors.Is.
	ErrProdGateBlocked = errors.New("production gate blocked")

	// ErrChangedByRequired indicates a toggle without an identifiable operator.
	ErrChangedByRequired = errors.New("changed_by is required")
)

// ProdGateBlockedError reports that the global gate refused an
// effect-producing action.
type ProdGateBlockedError struct {
	Code   string
	Reason string
	Action string
}

// Error implements the error interface.
func (e *ProdGateBlockedError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("production gate blocked: %s", e.Reason)
	}
	return fmt.Sprintf("production gate blocked %s: %s", e.Action, e.Reason)
}

// Is makes errors.Is(err, ErrProdGateBlocked) true.
func (e *ProdGateBlockedError) Is(target error) bool {
	return target == ErrProdGateBlocked
}
