package engine

import (
	"fmt"
	"strings"
)

// State is the lifecycle state of an engine.
type State string

const (
	// StateDisabled is the initial state. Engines never seen before are DISABLED.
	StateDisabled State = "DISABLED"

	// StateDormant means the engine is provisioned but not running.
	StateDormant State = "DORMANT"

	// StateSandbox means the engine runs but may not perform effect-producing actions.
	StateSandbox State = "SANDBOX"

	// StateActive is the only state in which effect-producing actions are eligible.
	StateActive State = "ACTIVE"
)

// DefaultState is the state assumed for an engine key with no stored record.
const DefaultState = StateDisabled

// States returns every lifecycle state in lexicographic order.
func States() []State {
	return []State{StateActive, StateDisabled, StateDormant, StateSandbox}
}

// Valid reports whether s is one of the four lifecycle states.
func (s State) Valid() bool {
	switch s {
	case StateDisabled, StateDormant, StateSandbox, StateActive:
		return true
	}
	return false
}

// String returns the state name.
func (s State) String() string {
	return string(s)
}

// ParseState parses a state name. Matching is case-insensitive and ignores
// surrounding whitespace.
func ParseState(name string) (State, error) {
	s := State(strings.ToUpper(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown engine state %q", name)
	}
	return s, nil
}

// AllowedNextStates returns the states reachable from current in one step,
// sorted lexicographically. The result is a fresh slice on every call.
// An unrecognized state has no transitions and yields an empty slice.
func AllowedNextStates(current State) []State {
	switch current {
	case StateDisabled:
		return []State{StateDormant}
	case StateDormant:
		return []State{StateSandbox}
	case StateSandbox:
		return []State{StateActive, StateDormant}
	case StateActive:
		// Step-down only.
		return []State{StateSandbox}
	default:
		return []State{}
	}
}

// CanTransition reports whether target is reachable from current in one step.
func CanTransition(current, target State) bool {
	for _, next := range AllowedNextStates(current) {
		if next == target {
			return true
		}
	}
	return false
}

// AssertTransition returns an *InvalidTransitionError unless target is in the
// allowed set for current. Self transitions are never allowed.
func AssertTransition(current, target State) error {
	if !CanTransition(current, target) {
		return &InvalidTransitionError{Current: current, Target: target}
	}
	return nil
}
