package server

import (
	"net/http"
	"strings"

	"valhalla-hq/heimdall/pkg/security/auth"
)

type toggleGoLiveRequest struct {
	Enabled   *bool  `json:"enabled"`
	ChangedBy string `json:"changed_by"`
	Reason    string `json:"reason"`
}

type killSwitchRequest struct {
	ChangedBy string `json:"changed_by"`
	Reason    string `json:"reason"`
}

// changedBy falls back to the authenticated user.
func changedBy(r *http.Request, given string) string {
	if given = strings.TrimSpace(given); given != "" {
		return given
	}
	return auth.UserID(r.Context())
}

func (s *Server) handleGateState(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Governance.GateState(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleToggleGoLive(w http.ResponseWriter, r *http.Request) {
	var req toggleGoLiveRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Enabled == nil {
		writeError(w, r, badRequest("enabled is required"))
		return
	}

	st, err := s.deps.Governance.ToggleGoLive(r.Context(), *req.Enabled, changedBy(r, req.ChangedBy), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleEngageKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req killSwitchRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	st, err := s.deps.Governance.EngageKillSwitch(r.Context(), changedBy(r, req.ChangedBy), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDisengageKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req killSwitchRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	st, err := s.deps.Governance.DisengageKillSwitch(r.Context(), changedBy(r, req.ChangedBy), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRunbook(w http.ResponseWriter, r *http.Request) {
	report := s.deps.Runbook.Build(r.Context())

	if strings.EqualFold(r.URL.Query().Get("format"), "markdown") {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(report.Markdown()))
		return
	}
	writeJSON(w, http.StatusOK, report)
}
