package governance

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"valhalla-hq/heimdall/pkg/audit"
	"valhalla-hq/heimdall/pkg/golive"
	"valhalla-hq/heimdall/pkg/telemetry/tracing"
)

// GateState returns the current go-live state. A missing record reads as
// both flags false.
func (s *Service) GateState(ctx context.Context) (golive.State, error) {
	return s.gate.State(ctx)
}

// ToggleGoLive sets the go-live flag. The kill switch is never touched.
func (s *Service) ToggleGoLive(ctx context.Context, enabled bool, changedBy, reason string) (golive.State, error) {
	ctx, span := s.tracer.Start(ctx, "heimdall.gate.toggle_go_live")
	defer span.End()
	span.SetAttributes(
		attribute.Bool(tracing.AttrGoLive, enabled),
		attribute.String(tracing.AttrActor, changedBy),
	)

	st, err := s.gate.ToggleGoLive(ctx, enabled, changedBy, reason)
	tracing.SetError(span, err)
	if err != nil {
		return st, err
	}

	change := "go_live_disabled"
	if enabled {
		change = "go_live_enabled"
	}
	s.afterGateChange(ctx, st, change, &audit.Record{
		Kind:    audit.KindGoLiveToggled,
		Outcome: audit.OutcomeApplied,
		Actor:   st.ChangedBy,
		Reason:  st.Reason,
		ToState: boolState(enabled),
	})
	return st, nil
}

// EngageKillSwitch engages the kill switch. GoLiveEnabled is left untouched.
func (s *Service) EngageKillSwitch(ctx context.Context, changedBy, reason string) (golive.State, error) {
	ctx, span := s.tracer.Start(ctx, "heimdall.gate.engage_kill_switch")
	defer span.End()
	span.SetAttributes(attribute.String(tracing.AttrActor, changedBy))

	st, err := s.gate.EngageKillSwitch(ctx, changedBy, reason)
	tracing.SetError(span, err)
	if err != nil {
		return st, err
	}

	s.afterGateChange(ctx, st, "kill_switch_engaged", &audit.Record{
		Kind:    audit.KindKillSwitchEngaged,
		Outcome: audit.OutcomeApplied,
		Actor:   st.ChangedBy,
		Reason:  st.Reason,
	})
	return st, nil
}

// DisengageKillSwitch clears the kill switch. GoLiveEnabled is left untouched.
func (s *Service) DisengageKillSwitch(ctx context.Context, changedBy, reason string) (golive.State, error) {
	ctx, span := s.tracer.Start(ctx, "heimdall.gate.disengage_kill_switch")
	defer span.End()
	span.SetAttributes(attribute.String(tracing.AttrActor, changedBy))

	st, err := s.gate.DisengageKillSwitch(ctx, changedBy, reason)
	tracing.SetError(span, err)
	if err != nil {
		return st, err
	}

	s.afterGateChange(ctx, st, "kill_switch_disengaged", &audit.Record{
		Kind:    audit.KindKillSwitchDisengaged,
		Outcome: audit.OutcomeApplied,
		Actor:   st.ChangedBy,
		Reason:  st.Reason,
	})
	return st, nil
}

func (s *Service) afterGateChange(ctx context.Context, st golive.State, change string, rec *audit.Record) {
	s.metrics.SetGateState(st.GoLiveEnabled, st.KillSwitchEngaged)
	s.metrics.RecordGateChange(change)
	s.record(ctx, rec)
}

func boolState(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
