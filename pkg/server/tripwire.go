package server

import (
	"net/http"
	"strings"

	"valhalla-hq/heimdall/pkg/tripwire"
)

type evaluateRequest struct {
	Domain string `json:"domain"`
	Metric string `json:"metric"`
	Actor  string `json:"actor"`
}

func (s *Server) handleRecordKPIEvent(w http.ResponseWriter, r *http.Request) {
	var e tripwire.Event
	if err := s.decodeJSON(w, r, &e); err != nil {
		writeError(w, r, err)
		return
	}

	e.Normalize()
	if err := e.Validate(); err != nil {
		writeError(w, r, badRequest("invalid kpi event: %v", err))
		return
	}

	if err := s.deps.Tripwire.Record(r.Context(), &e); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"policies": s.deps.Tripwire.Policies()})
}

// handleEvaluateTripwire runs one policy. A triggered evaluation whose lever
// failed is reported as an internal error after the evaluation was stored.
func (s *Server) handleEvaluateTripwire(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Domain) == "" || strings.TrimSpace(req.Metric) == "" {
		writeError(w, r, badRequest("domain and metric are required"))
		return
	}

	actor := req.Actor
	if strings.TrimSpace(actor) == "" {
		actor = changedBy(r, "")
	}

	ev, err := s.deps.Tripwire.Evaluate(r.Context(), req.Domain, req.Metric, actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}
