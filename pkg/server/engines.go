package server

import (
	"net/http"

	"valhalla-hq/heimdall/pkg/engine"
)

type transitionRequest struct {
	Target    string `json:"target"`
	ChangedBy string `json:"changed_by"`
	Reason    string `json:"reason"`
}

type nextStatesResponse struct {
	Key     string         `json:"key"`
	State   engine.State   `json:"state"`
	Allowed []engine.State `json:"allowed"`
}

func (s *Server) handleListEngines(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.Governance.Engines(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"engines": recs})
}

// handleGetEngine returns the stored record, or a DISABLED record
// (engine.DefaultState) for an engine that was never transitioned.
func (s *Server) handleGetEngine(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Governance.Engine(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleNextStates(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Governance.Engine(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nextStatesResponse{
		Key:     rec.Key,
		State:   rec.State,
		Allowed: engine.AllowedNextStates(rec.State),
	})
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	target, err := engine.ParseState(req.Target)
	if err != nil {
		writeError(w, r, badRequest("%v", err))
		return
	}

	res, err := s.deps.Governance.Transition(r.Context(), r.PathValue("key"), target, changedBy(r, req.ChangedBy), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
