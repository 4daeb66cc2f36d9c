package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// TransitionResult describes one persisted transition.
type TransitionResult struct {
	Previous *Record `json:"previous"`
	Current  *Record `json:"current"`
}

// Lifecycle validates and persists engine transitions. Every write goes
// through AssertTransition and a revision compare-and-set.
type Lifecycle struct {
	store  Store
	clock  func() time.Time
	logger *slog.Logger
}

// NewLifecycle creates a Lifecycle over store.
func NewLifecycle(store Store) *Lifecycle {
	return &Lifecycle{
		store:  store,
		clock:  time.Now,
		logger: slog.Default().With("component", "engine.lifecycle"),
	}
}

// WithClock overrides the clock used for UpdatedAt.
func (l *Lifecycle) WithClock(clock func() time.Time) *Lifecycle {
	l.clock = clock
	return l
}

// Get returns the current record for key.
func (l *Lifecycle) Get(ctx context.Context, key string) (*Record, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrEmptyKey
	}
	return l.store.GetEngine(ctx, key)
}

// List returns every stored engine record.
func (l *Lifecycle) List(ctx context.Context) ([]*Record, error) {
	return l.store.ListEngines(ctx)
}

// Transition moves engine key to target. It fails with an
// *InvalidTransitionError when target is not allowed from the current state
// and with ErrConflict when another writer moved the engine first.
func (l *Lifecycle) Transition(ctx context.Context, key string, target State, changedBy, reason string) (*TransitionResult, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrEmptyKey
	}
	changedBy = strings.TrimSpace(changedBy)
	if changedBy == "" {
		return nil, ErrChangedByRequired
	}

	current, err := l.store.GetEngine(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine %q: %w", key, err)
	}

	if err := AssertTransition(current.State, target); err != nil {
		l.logger.Warn("rejected engine transition",
			"engine", key,
			"from", current.State,
			"to", target,
			"changed_by", changedBy,
		)
		return nil, err
	}

	next := &Record{
		Key:       key,
		State:     target,
		ChangedBy: changedBy,
		Reason:    strings.TrimSpace(reason),
		UpdatedAt: l.clock().UTC(),
	}

	stored, err := l.store.CompareAndSetEngine(ctx, next, current.Revision)
	if err != nil {
		return nil, fmt.Errorf("failed to persist engine %q transition: %w", key, err)
	}

	l.logger.Info("engine transitioned",
		"engine", key,
		"from", current.State,
		"to", stored.State,
		"revision", stored.Revision,
		"changed_by", changedBy,
	)

	return &TransitionResult{Previous: current, Current: stored}, nil
}
