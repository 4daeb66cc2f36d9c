package server

import (
	"net/http"
	"strings"

	"valhalla-hq/heimdall/pkg/engine"
	"valhalla-hq/heimdall/pkg/guard"
)

type guardCheckRequest struct {
	Engine string `json:"engine"`
	Action string `json:"action"`
	Actor  string `json:"actor"`
}

type guardCheckResponse struct {
	Allowed           bool             `json:"allowed"`
	Clearance         *guard.Clearance `json:"clearance"`
	RealWorldEffect   bool             `json:"real_world_effect"`
	Registered        bool             `json:"registered"`
	EngineState       engine.State     `json:"engine_state"`
	GoLiveEnabled     bool             `json:"go_live_enabled"`
	KillSwitchEngaged bool             `json:"kill_switch_engaged"`
}

type revalidateRequest struct {
	Clearance *guard.Clearance `json:"clearance"`
}

type revalidateResponse struct {
	Valid     bool   `json:"valid"`
	Clearance string `json:"clearance_id"`
}

func (s *Server) handleGuardCheck(w http.ResponseWriter, r *http.Request) {
	var req guardCheckRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Action) == "" {
		writeError(w, r, badRequest("action is required"))
		return
	}

	actor := req.Actor
	if strings.TrimSpace(actor) == "" {
		actor = changedBy(r, "")
	}

	clearance, decision, err := s.deps.Governance.Authorize(r.Context(), req.Engine, req.Action, actor)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, guardCheckResponse{
		Allowed:           true,
		Clearance:         clearance,
		RealWorldEffect:   decision.Action.RealWorldEffect,
		Registered:        decision.Registered,
		EngineState:       decision.Engine.State,
		GoLiveEnabled:     decision.Gate.GoLiveEnabled,
		KillSwitchEngaged: decision.Gate.KillSwitchEngaged,
	})
}

func (s *Server) handleGuardRevalidate(w http.ResponseWriter, r *http.Request) {
	var req revalidateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Clearance == nil || req.Clearance.EngineKey == "" {
		writeError(w, r, badRequest("clearance is required"))
		return
	}

	if err := s.deps.Governance.Revalidate(r.Context(), req.Clearance); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revalidateResponse{Valid: true, Clearance: req.Clearance.ID})
}
