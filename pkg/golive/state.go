package golive

import (
	"context"
	"sync"
	"time"
)

// State is the global go-live record. Exactly one authoritative instance
// exists per deployment.
type State struct {
	// GoLiveEnabled permits effect-producing actions in production.
	GoLiveEnabled bool `json:"go_live_enabled"`

	// KillSwitchEngaged blocks every effect-producing action and overrides
	// GoLiveEnabled.
	KillSwitchEngaged bool `json:"kill_switch_engaged"`

	// ChangedBy identifies the operator of the last toggle.
	ChangedBy string `json:"changed_by,omitempty"`

	// Reason is the optional justification for the last toggle.
	Reason string `json:"reason,omitempty"`

	// UpdatedAt is when the last toggle was persisted.
	UpdatedAt time.Time `json:"updated_at"`

	// Revision increments on every persisted toggle.
	Revision int64 `json:"revision"`
}

// Store persists the singleton State. Implementations must be safe for
// concurrent use.
type Store interface {
	// LoadGate returns the stored state, or nil when nothing was ever stored.
	LoadGate(ctx context.Context) (*State, error)

	// UpdateGate applies fn to the current state (the zero State when absent)
	// and persists the result in one transaction. The stored Revision is the
	// previous revision plus one regardless of what fn returns.
	UpdateGate(ctx context.Context, fn func(State) (State, error)) (*State, error)
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// LoadGate implements Store.
func (s *MemoryStore) LoadGate(ctx context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return nil, nil
	}
	st := *s.state
	return &st, nil
}

// UpdateGate implements Store.
func (s *MemoryStore) UpdateGate(ctx context.Context, fn func(State) (State, error)) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current State
	if s.state != nil {
		current = *s.state
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	next.Revision = current.Revision + 1

	s.state = &next
	st := next
	return &st, nil
}
