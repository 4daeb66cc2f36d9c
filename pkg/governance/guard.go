package governance

import (
	"context"
	"errors"
	"time"

	"valhalla-hq/heimdall/pkg/audit"
	"valhalla-hq/heimdall/pkg/engine"
	"valhalla-hq/heimdall/pkg/guard"
	"valhalla-hq/heimdall/pkg/telemetry/tracing"
)

// Guard decision outcomes used in metrics and spans.
const (
	OutcomeAllowed = "allowed"
	OutcomeBlocked = "blocked"
	OutcomeError   = "error"
)

// Authorize runs the combined guard for (engineKey, actionName) and issues a
// clearance when the action may proceed. A refusal is returned as a
// *guard.EngineBlockedError together with the decision snapshot.
func (s *Service) Authorize(ctx context.Context, engineKey, actionName, actor string) (*guard.Clearance, *guard.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "heimdall.guard.authorize")
	defer span.End()

	start := time.Now()
	clearance, decision, err := s.guard.Authorize(ctx, engineKey, actionName, actor)
	elapsed := time.Since(start)

	action, _ := engine.LookupAction(actionName)
	tracing.SetGuardAttributes(span, engineKey, action.Name, action.RealWorldEffect, actor)

	outcome, code := classify(err)
	if decision != nil {
		tracing.SetDecisionAttributes(span, string(decision.Engine.State),
			decision.Gate.GoLiveEnabled, decision.Gate.KillSwitchEngaged, outcome, code)
	}
	if outcome == OutcomeError {
		tracing.SetError(span, err)
	}
	s.metrics.RecordGuardDecision(action.Name, outcome, code, elapsed)

	switch outcome {
	case OutcomeBlocked:
		var blocked *guard.EngineBlockedError
		errors.As(err, &blocked)
		s.recordAsync(ctx, &audit.Record{
			Kind:      audit.KindActionGuarded,
			Outcome:   audit.OutcomeBlocked,
			Actor:     actor,
			EngineKey: blocked.EngineName,
			FromState: string(blocked.State),
			Action:    blocked.Action,
			BlockCode: blocked.Code,
			Detail:    blocked.Reason,
		})
	case OutcomeAllowed:
		if s.recordAllowed.Load() {
			s.recordAsync(ctx, &audit.Record{
				Kind:      audit.KindActionGuarded,
				Outcome:   audit.OutcomeAllowed,
				Actor:     actor,
				EngineKey: clearance.EngineKey,
				FromState: string(clearance.EngineState),
				Action:    clearance.Action,
				Detail:    clearance.ID,
			})
		}
	}

	return clearance, decision, err
}

// Revalidate checks a clearance immediately before its effect runs. Stale
// clearances and new blocks are audited.
func (s *Service) Revalidate(ctx context.Context, c *guard.Clearance) error {
	ctx, span := s.tracer.Start(ctx, "heimdall.guard.revalidate")
	defer span.End()

	err := s.guard.Revalidate(ctx, c)
	outcome, code := classify(err)

	result := "ok"
	switch {
	case code == guard.CodeClearanceStale:
		result = "stale"
	case outcome == OutcomeBlocked:
		result = "blocked"
	case outcome == OutcomeError:
		result = "error"
		tracing.SetError(span, err)
	}
	s.metrics.RecordRevalidation(result)

	if outcome == OutcomeBlocked {
		var blocked *guard.EngineBlockedError
		errors.As(err, &blocked)
		s.recordAsync(ctx, &audit.Record{
			Kind:      audit.KindActionGuarded,
			Outcome:   audit.OutcomeBlocked,
			Actor:     c.Actor,
			EngineKey: blocked.EngineName,
			FromState: string(blocked.State),
			Action:    blocked.Action,
			BlockCode: blocked.Code,
			Detail:    blocked.Reason,
		})
	}
	return err
}

// classify splits a guard result into an outcome and a block code.
func classify(err error) (outcome, code string) {
	if err == nil {
		return OutcomeAllowed, ""
	}
	var blocked *guard.EngineBlockedError
	if errors.As(err, &blocked) {
		return OutcomeBlocked, blocked.Code
	}
	return OutcomeError, ""
}
