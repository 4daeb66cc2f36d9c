package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"valhalla-hq/heimdall/pkg/config"
	"valhalla-hq/heimdall/pkg/engine"
	"valhalla-hq/heimdall/pkg/golive"
	"valhalla-hq/heimdall/pkg/guard"
	"valhalla-hq/heimdall/pkg/server/middleware"
)

// Error codes that are not block codes.
const (
	CodeBadRequest        = "BAD_REQUEST"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeConflict          = "CONFLICT"
	CodeInternal          = "INTERNAL"
)

// badRequestError marks client input errors.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// writeJSON writes v with status 200 unless status is given.
func writeJSON(w http.ResponseWriter, status int, v any) {
	middleware.WriteJSON(w, status, v)
}

// writeError maps err onto a status and JSON error body. Block reasons are
// returned verbatim; unexpected errors are logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		blocked *guard.EngineBlockedError
		gate    *golive.ProdGateBlockedError
		invalid *engine.InvalidTransitionError
		bad     *badRequestError
	)

	switch {
	case errors.As(err, &blocked):
		status := http.StatusForbidden
		switch blocked.Code {
		case golive.CodeKillSwitchEngaged, golive.CodeGoLiveDisabled:
			status = http.StatusServiceUnavailable
		case guard.CodeClearanceStale:
			status = http.StatusConflict
		}
		middleware.WriteError(w, status, middleware.ErrorDetail{
			Code:    blocked.Code,
			Message: blocked.Reason,
			Engine:  blocked.EngineName,
			Action:  blocked.Action,
			State:   string(blocked.State),
		})

	case errors.As(err, &gate):
		middleware.WriteError(w, http.StatusServiceUnavailable, middleware.ErrorDetail{
			Code:    gate.Code,
			Message: gate.Reason,
			Action:  gate.Action,
		})

	case errors.As(err, &invalid):
		middleware.WriteError(w, http.StatusConflict, middleware.ErrorDetail{
			Code:    CodeInvalidTransition,
			Message: invalid.Error(),
			State:   string(invalid.Current),
		})

	case errors.Is(err, engine.ErrConflict):
		middleware.WriteError(w, http.StatusConflict, middleware.ErrorDetail{
			Code:    CodeConflict,
			Message: err.Error(),
		})

	case errors.As(err, &bad),
		errors.Is(err, engine.ErrChangedByRequired),
		errors.Is(err, engine.ErrEmptyKey),
		errors.Is(err, golive.ErrChangedByRequired):
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrorDetail{
			Code:    CodeBadRequest,
			Message: err.Error(),
		})

	default:
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrorDetail{
			Code:    CodeInternal,
			Message: "An internal error occurred.",
		})
	}
}

// decodeJSON reads a JSON object into v. An empty body leaves v unchanged.
// Unknown fields and trailing data are rejected.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	limit := s.config().Server.MaxBodyBytes
	if limit <= 0 {
		limit = config.DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("request body exceeds %d bytes", tooLarge.Limit)
		}
		return badRequest("invalid request body: %v", err)
	}
	if dec.More() {
		return badRequest("invalid request body: unexpected data after JSON object")
	}
	return nil
}
