package governance

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"valhalla-hq/heimdall/pkg/audit"
	"valhalla-hq/heimdall/pkg/engine"
	"valhalla-hq/heimdall/pkg/telemetry/tracing"
)

// Engine returns the record for key. Unknown engines read as DISABLED at
// revision 0.
func (s *Service) Engine(ctx context.Context, key string) (*engine.Record, error) {
	return s.lifecycle.Get(ctx, key)
}

// Engines returns every stored engine record ordered by key.
func (s *Service) Engines(ctx context.Context) ([]*engine.Record, error) {
	return s.lifecycle.List(ctx)
}

// Transition moves engine key to target. Rejected transitions are counted
// but not audited; applied ones are both.
func (s *Service) Transition(ctx context.Context, key string, target engine.State, changedBy, reason string) (*engine.TransitionResult, error) {
	ctx, span := s.tracer.Start(ctx, "heimdall.engine.transition")
	defer span.End()
	tracing.SetTransitionAttributes(span, key, string(target), changedBy)

	res, err := s.lifecycle.Transition(ctx, key, target, changedBy, reason)
	tracing.SetError(span, err)
	if err != nil {
		s.metrics.RecordTransitionError(transitionErrorReason(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int64(tracing.AttrRevision, res.Current.Revision))

	s.metrics.RecordTransition(res.Current.Key, string(res.Previous.State), string(res.Current.State), stateNames())
	s.record(ctx, &audit.Record{
		Kind:      audit.KindEngineTransitioned,
		Outcome:   audit.OutcomeApplied,
		Actor:     res.Current.ChangedBy,
		Reason:    res.Current.Reason,
		EngineKey: res.Current.Key,
		FromState: string(res.Previous.State),
		ToState:   string(res.Current.State),
	})
	return res, nil
}

// StepDown moves an ACTIVE engine back to SANDBOX. An engine in any other
// state is left alone and StepDown returns (nil, nil).
func (s *Service) StepDown(ctx context.Context, key, changedBy, reason string) (*engine.TransitionResult, error) {
	rec, err := s.lifecycle.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec.State != engine.StateActive {
		s.logger.InfoContext(ctx, "step down skipped, engine not active",
			"engine", rec.Key,
			"state", rec.State,
		)
		return nil, nil
	}
	return s.Transition(ctx, key, engine.StateSandbox, changedBy, reason)
}
