package engine

import "strings"

// Action is a registered engine action. The set is closed: adding an action
// requires a code change so that the dangerous set cannot drift silently.
type Action string

const (
	// ActionOutreach sends communication to a third party.
	ActionOutreach Action = "OUTREACH"

	// ActionContractSend sends a contract for signature.
	ActionContractSend Action = "CONTRACT_SEND"

	// ActionDispoSend sends a disposition package to buyers.
	ActionDispoSend Action = "DISPO_SEND"

	// ActionMoneyMove moves funds.
	ActionMoneyMove Action = "MONEY_MOVE"

	// ActionReadOnly reads records without changing anything.
	ActionReadOnly Action = "READ_ONLY"

	// ActionCompute runs a computation whose output stays inside the system.
	ActionCompute Action = "COMPUTE"
)

// EngineAction is the value the guard evaluates. RealWorldEffect is the sole
// criterion for whether the go-live gate applies.
type EngineAction struct {
	Name            string `json:"name"`
	RealWorldEffect bool   `json:"real_world_effect"`
}

// Actions returns the registry in a stable order: effect-producing actions
// first, then side-effect-free actions.
func Actions() []Action {
	return []Action{
		ActionOutreach,
		ActionContractSend,
		ActionDispoSend,
		ActionMoneyMove,
		ActionReadOnly,
		ActionCompute,
	}
}

// RealWorldEffect reports whether performing the action has consequences
// outside the system's own records. Unregistered values are effect-producing.
func (a Action) RealWorldEffect() bool {
	switch a {
	case ActionReadOnly, ActionCompute:
		return false
	case ActionOutreach, ActionContractSend, ActionDispoSend, ActionMoneyMove:
		return true
	default:
		return true
	}
}

// Registered reports whether a is part of the static registry.
func (a Action) Registered() bool {
	switch a {
	case ActionOutreach, ActionContractSend, ActionDispoSend, ActionMoneyMove,
		ActionReadOnly, ActionCompute:
		return true
	}
	return false
}

// EngineAction returns the guard value for a.
func (a Action) EngineAction() EngineAction {
	return EngineAction{Name: string(a), RealWorldEffect: a.RealWorldEffect()}
}

// LookupAction resolves an action name against the registry. Names are
// trimmed and upper-cased. An unknown name is classified as effect-producing
// and ok is false.
func LookupAction(name string) (action EngineAction, ok bool) {
	a := Action(strings.ToUpper(strings.TrimSpace(name)))
	return a.EngineAction(), a.Registered()
}
