package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys in the heimdall.* namespace.
const (
	AttrEngine       = "heimdall.engine"
	AttrEngineState  = "heimdall.engine.state"
	AttrAction       = "heimdall.action"
	AttrActionEffect = "heimdall.action.real_world_effect"
	AttrActor        = "heimdall.actor"
	AttrOutcome      = "heimdall.outcome"
	AttrBlockCode    = "heimdall.block.code"
	AttrGoLive       = "heimdall.gate.go_live_enabled"
	AttrKillSwitch   = "heimdall.gate.kill_switch_engaged"
	AttrTarget       = "heimdall.engine.target_state"
	AttrRevision     = "heimdall.revision"
)

// SetGuardAttributes records what was asked of the guard.
func SetGuardAttributes(span trace.Span, engineKey, action string, effect bool, actor string) {
	span.SetAttributes(
		attribute.String(AttrEngine, engineKey),
		attribute.String(AttrAction, action),
		attribute.Bool(AttrActionEffect, effect),
		attribute.String(AttrActor, actor),
	)
}

// SetDecisionAttributes records the state the guard saw and its outcome.
// code is empty for allowed actions.
func SetDecisionAttributes(span trace.Span, engineState string, goLive, killSwitch bool, outcome, code string) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrEngineState, engineState),
		attribute.Bool(AttrGoLive, goLive),
		attribute.Bool(AttrKillSwitch, killSwitch),
		attribute.String(AttrOutcome, outcome),
	}
	if code != "" {
		attrs = append(attrs, attribute.String(AttrBlockCode, code))
	}
	span.SetAttributes(attrs...)
}

// SetTransitionAttributes records a lifecycle transition request.
func SetTransitionAttributes(span trace.Span, engineKey, target, actor string) {
	span.SetAttributes(
		attribute.String(AttrEngine, engineKey),
		attribute.String(AttrTarget, target),
		attribute.String(AttrActor, actor),
	)
}
