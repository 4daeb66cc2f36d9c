package governance

import (
	"context"

	"valhalla-hq/heimdall/pkg/audit"
	"valhalla-hq/heimdall/pkg/tripwire"
)

// Levers returns the controls a triggered tripwire policy pulls. Both
// levers audit the trigger before acting.
func (s *Service) Levers() tripwire.Levers {
	return levers{s: s}
}

type levers struct {
	s *Service
}

func (l levers) EngageKillSwitch(ctx context.Context, changedBy, reason string) error {
	l.s.metrics.RecordTripwireTrigger(string(tripwire.ActionKillSwitch))
	l.s.record(ctx, &audit.Record{
		Kind:    audit.KindTripwireTriggered,
		Outcome: audit.OutcomeApplied,
		Actor:   changedBy,
		Reason:  reason,
		Action:  string(tripwire.ActionKillSwitch),
	})
	_, err := l.s.EngageKillSwitch(ctx, changedBy, reason)
	return err
}

func (l levers) StepDown(ctx context.Context, engineKey, changedBy, reason string) error {
	l.s.metrics.RecordTripwireTrigger(string(tripwire.ActionStepDown))
	l.s.record(ctx, &audit.Record{
		Kind:      audit.KindTripwireTriggered,
		Outcome:   audit.OutcomeApplied,
		Actor:     changedBy,
		Reason:    reason,
		EngineKey: engineKey,
		Action:    string(tripwire.ActionStepDown),
	})
	_, err := l.s.StepDown(ctx, engineKey, changedBy, reason)
	return err
}

// ObserveEvaluation counts a tripwire evaluation. It is installed with
// tripwire.WithObserver.
func (s *Service) ObserveEvaluation(ev *tripwire.Evaluation) {
	result := "ok"
	switch {
	case ev.Triggered:
		result = "triggered"
	case ev.Note == tripwire.NotePolicyMissing:
		result = "skipped"
	case ev.DropFraction == nil:
		result = "inconclusive"
	}
	s.metrics.RecordTripwireEvaluation(ev.Domain, ev.Metric, result)
}
