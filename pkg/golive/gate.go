package golive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"valhalla-hq/heimdall/pkg/engine"
)

// AssertProdEligible decides whether the gate permits action. Actions
// without a real-world effect always pass. The kill switch is checked before
// go-live so that it wins regardless of GoLiveEnabled.
func AssertProdEligible(state State, action engine.EngineAction) error {
	if !action.RealWorldEffect {
		return nil
	}
	if state.KillSwitchEngaged {
		return &ProdGateBlockedError{
			Code:   CodeKillSwitchEngaged,
			Reason: ReasonKillSwitchEngaged,
			Action: action.Name,
		}
	}
	if !state.GoLiveEnabled {
		return &ProdGateBlockedError{
			Code:   CodeGoLiveDisabled,
			Reason: ReasonGoLiveDisabled,
			Action: action.Name,
		}
	}
	return nil
}

// Gate reads and toggles the persisted go-live state.
type Gate struct {
	store  Store
	clock  func() time.Time
	logger *slog.Logger
}

// NewGate creates a Gate over store.
func NewGate(store Store) *Gate {
	return &Gate{
		store:  store,
		clock:  time.Now,
		logger: slog.Default().With("component", "golive.gate"),
	}
}

// WithClock overrides the clock used for UpdatedAt.
func (g *Gate) WithClock(clock func() time.Time) *Gate {
	g.clock = clock
	return g
}

// State returns the current gate. A missing record fails closed: both flags
// false at revision 0.
func (g *Gate) State(ctx context.Context) (State, error) {
	st, err := g.store.LoadGate(ctx)
	if err != nil {
		return State{}, fmt.Errorf("failed to load go-live state: %w", err)
	}
	if st == nil {
		return State{}, nil
	}
	return *st, nil
}

// AssertProdEligible reads the current gate and checks action against it.
func (g *Gate) AssertProdEligible(ctx context.Context, action engine.EngineAction) error {
	st, err := g.State(ctx)
	if err != nil {
		return err
	}
	return AssertProdEligible(st, action)
}

// ToggleGoLive sets GoLiveEnabled. The kill switch is left untouched.
func (g *Gate) ToggleGoLive(ctx context.Context, enabled bool, changedBy, reason string) (State, error) {
	return g.update(ctx, "go_live", changedBy, reason, func(st *State) {
		st.GoLiveEnabled = enabled
	})
}

// EngageKillSwitch sets KillSwitchEngaged. GoLiveEnabled is left untouched.
func (g *Gate) EngageKillSwitch(ctx context.Context, changedBy, reason string) (State, error) {
	return g.update(ctx, "kill_switch", changedBy, reason, func(st *State) {
		st.KillSwitchEngaged = true
	})
}

// DisengageKillSwitch clears KillSwitchEngaged. GoLiveEnabled is left untouched.
func (g *Gate) DisengageKillSwitch(ctx context.Context, changedBy, reason string) (State, error) {
	return g.update(ctx, "kill_switch", changedBy, reason, func(st *State) {
		st.KillSwitchEngaged = false
	})
}

func (g *Gate) update(ctx context.Context, flag, changedBy, reason string, apply func(*State)) (State, error) {
	changedBy = strings.TrimSpace(changedBy)
	if changedBy == "" {
		return State{}, ErrChangedByRequired
	}
	reason = strings.TrimSpace(reason)
	now := g.clock().UTC()

	stored, err := g.store.UpdateGate(ctx, func(current State) (State, error) {
		next := current
		apply(&next)
		next.ChangedBy = changedBy
		next.Reason = reason
		next.UpdatedAt = now
		return next, nil
	})
	if err != nil {
		return State{}, fmt.Errorf("failed to update %s: %w", flag, err)
	}

	g.logger.Info("go-live gate updated",
		"flag", flag,
		"go_live_enabled", stored.GoLiveEnabled,
		"kill_switch_engaged", stored.KillSwitchEngaged,
		"revision", stored.Revision,
		"changed_by", changedBy,
	)

	return *stored, nil
}
