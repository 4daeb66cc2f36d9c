// Package golive implements the global go-live gate and kill switch.
//
// A single State record says whether production execution is permitted
// (GoLiveEnabled) and whether the emergency kill switch is engaged
// (KillSwitchEngaged). The kill switch always wins.
//
// AssertProdEligible is pure and takes the state explicitly:
//
//	st, _ := gate.State(ctx)
//	if err := golive.AssertProdEligible(st, action); err != nil {
//		var blocked *golive.ProdGateBlockedError
//		errors.As(err, &blocked) // blocked.Code is KILL_SWITCH_ENGAGED or GO_LIVE_DISABLED
//	}
//
// Toggles update one flag together with ChangedBy, Reason and UpdatedAt in a
// single store transaction. A missing record is read as both flags false.
package golive
