// Package engine defines the lifecycle vocabulary for autonomous engines.
//
// # Lifecycle
//
// Every engine is identified by an opaque key and is in exactly one of four
// states. Transitions are restricted to a static table:
//
//	DISABLED -> DORMANT
//	DORMANT  -> SANDBOX
//	SANDBOX  -> ACTIVE | DORMANT
//	ACTIVE   -> SANDBOX
//
// AssertTransition is the single enforcement point. Lifecycle.Transition calls
// it before every write and persists with a revision compare-and-set, so a
// transition computed from a stale read fails with ErrConflict.
//
// An engine key with no stored record is DISABLED at revision 0.
//
// # Actions
//
// Actions form a closed registry. Each action is tagged as effect-producing
// (OUTREACH, CONTRACT_SEND, DISPO_SEND, MONEY_MOVE) or side-effect-free
// (READ_ONLY, COMPUTE). LookupAction classifies unknown names as
// effect-producing.
//
//	action, ok := engine.LookupAction("contract_send")
//	// action.RealWorldEffect == true, ok == true
package engine
