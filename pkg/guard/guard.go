package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"valhalla-hq/heimdall/pkg/engine"
	"valhalla-hq/heimdall/pkg/golive"
)

// GuardAction decides whether engineKey, currently in engineState, may
// perform action under gate. It is pure: both states are passed in.
//
// Side-effect-free actions always pass. Effect-producing actions require
// ACTIVE and then a passing go-live gate.
func GuardAction(engineKey string, engineState engine.State, action engine.EngineAction, gate golive.State) error {
	if !action.RealWorldEffect {
		return nil
	}

	if engineState != engine.StateActive {
		return &EngineBlockedError{
			EngineName: engineKey,
			Action:     action.Name,
			State:      engineState,
			Code:       CodeEngineNotActive,
			Reason:     ReasonEngineNotActive,
		}
	}

	if err := golive.AssertProdEligible(gate, action); err != nil {
		blocked := &EngineBlockedError{
			EngineName: engineKey,
			Action:     action.Name,
			State:      engineState,
			Cause:      err,
		}
		var gateErr *golive.ProdGateBlockedError
		if errors.As(err, &gateErr) {
			blocked.Code = gateErr.Code
			blocked.Reason = gateErr.Reason
		} else {
			blocked.Reason = err.Error()
		}
		return blocked
	}

	return nil
}

// Clearance is issued when an action passes the guard. It records the
// revisions both decisions were based on so that Revalidate can detect a
// concurrent step-down or gate change before the effect runs.
type Clearance struct {
	ID             string       `json:"id"`
	EngineKey      string       `json:"engine"`
	Action         string       `json:"action"`
	EngineState    engine.State `json:"engine_state"`
	EngineRevision int64        `json:"engine_revision"`
	GateRevision   int64        `json:"gate_revision"`
	Actor          string       `json:"actor,omitempty"`
	IssuedAt       time.Time    `json:"issued_at"`
}

// Guard reads engine and gate state from their stores and applies
// GuardAction.
type Guard struct {
	engines engine.Store
	gate    golive.Store
	clock   func() time.Time
	logger  *slog.Logger
}

// New creates a Guard over the two stores.
func New(engines engine.Store, gate golive.Store) *Guard {
	return &Guard{
		engines: engines,
		gate:    gate,
		clock:   time.Now,
		logger:  slog.Default().With("component", "guard"),
	}
}

// WithClock overrides the clock used for IssuedAt.
func (g *Guard) WithClock(clock func() time.Time) *Guard {
	g.clock = clock
	return g
}

// Decision is the snapshot a guard evaluation was made on.
type Decision struct {
	Engine *engine.Record
	Gate   golive.State
	Action engine.EngineAction

	// Registered is false when the action name is not in the registry.
	Registered bool
}

// Evaluate reads both stores and applies GuardAction. The snapshot is
// returned even when the action is blocked.
func (g *Guard) Evaluate(ctx context.Context, engineKey, actionName string) (*Decision, error) {
	engineKey = strings.TrimSpace(engineKey)
	if engineKey == "" {
		return nil, engine.ErrEmptyKey
	}

	rec, err := g.engines.GetEngine(ctx, engineKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine %q: %w", engineKey, err)
	}

	st, err := g.gate.LoadGate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load go-live state: %w", err)
	}
	var gate golive.State
	if st != nil {
		gate = *st
	}

	action, registered := engine.LookupAction(actionName)
	d := &Decision{Engine: rec, Gate: gate, Action: action, Registered: registered}

	if !registered {
		g.logger.Warn("unregistered action treated as effect-producing",
			"engine", engineKey,
			"action", action.Name,
		)
	}

	return d, GuardAction(rec.Key, rec.State, action, gate)
}

// Authorize evaluates the action and issues a Clearance when it passes.
func (g *Guard) Authorize(ctx context.Context, engineKey, actionName, actor string) (*Clearance, *Decision, error) {
	d, err := g.Evaluate(ctx, engineKey, actionName)
	if err != nil {
		return nil, d, err
	}

	c := &Clearance{
		ID:             uuid.New().String(),
		EngineKey:      d.Engine.Key,
		Action:         d.Action.Name,
		EngineState:    d.Engine.State,
		EngineRevision: d.Engine.Revision,
		GateRevision:   d.Gate.Revision,
		Actor:          strings.TrimSpace(actor),
		IssuedAt:       g.clock().UTC(),
	}

	g.logger.Debug("clearance issued",
		"clearance_id", c.ID,
		"engine", c.EngineKey,
		"action", c.Action,
	)

	return c, d, nil
}

// Revalidate re-reads both stores for a previously issued clearance. It
// fails with CLEARANCE_STALE when the engine or gate revision moved, and
// with the ordinary block when the guard would now refuse the action.
func (g *Guard) Revalidate(ctx context.Context, c *Clearance) error {
	if c == nil {
		return errors.New("clearance is required")
	}

	d, err := g.Evaluate(ctx, c.EngineKey, c.Action)
	if err != nil {
		return err
	}

	if d.Engine.Revision != c.EngineRevision || d.Gate.Revision != c.GateRevision {
		return &EngineBlockedError{
			EngineName: c.EngineKey,
			Action:     c.Action,
			State:      d.Engine.State,
			Code:       CodeClearanceStale,
			Reason: fmt.Sprintf("clearance stale: engine revision %d -> %d, gate revision %d -> %d",
				c.EngineRevision, d.Engine.Revision, c.GateRevision, d.Gate.Revision),
		}
	}

	return nil
}
