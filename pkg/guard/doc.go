// Package guard is the single entry point callers use before attempting an
// engine action.
//
// GuardAction combines the engine lifecycle check with the go-live gate:
//
//  1. side-effect-free actions pass;
//  2. otherwise the engine must be ACTIVE (ENGINE_NOT_ACTIVE);
//  3. otherwise the gate must pass (KILL_SWITCH_ENGAGED, GO_LIVE_DISABLED).
//
// Every failure is an *EngineBlockedError with a verbatim Reason.
//
// The check is point-in-time. Guard.Authorize returns a Clearance stamped with
// the engine and gate revisions it was decided on, and effect executors call
// Guard.Revalidate immediately before the effect. This narrows the window in
// which an engine stepped down to SANDBOX could still act, but does not close
// it: no lease is held between Revalidate and the effect.
package guard
