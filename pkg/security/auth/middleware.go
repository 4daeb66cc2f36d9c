package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"valhalla-hq/heimdall/pkg/config"
	"valhalla-hq/heimdall/pkg/telemetry/logging"
)

// APIKeySource defines where to extract API keys from.
type APIKeySource struct {
	Type   string // header, query
	Name   string // Header name or query param
	Scheme string // "Bearer", etc. (optional)
}

// SourcesFromConfig converts configured sources.
func SourcesFromConfig(cfg config.AuthenticationConfig) []APIKeySource {
	sources := make([]APIKeySource, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sources = append(sources, APIKeySource{Type: s.Type, Name: s.Name, Scheme: s.Scheme})
	}
	return sources
}

// APIKeyMiddleware is HTTP middleware for API key authentication.
type APIKeyMiddleware struct {
	validator Validator
	sources   []APIKeySource
	logger    *slog.Logger
}

// NewAPIKeyMiddleware creates a new API key authentication middleware.
func NewAPIKeyMiddleware(validator Validator, sources []APIKeySource) *APIKeyMiddleware {
	return &APIKeyMiddleware{
		validator: validator,
		sources:   sources,
		logger:    slog.Default().With("component", "auth"),
	}
}

// Handle wraps next with API key authentication. The key's user id is
// stored in the request context and becomes the log actor.
func (m *APIKeyMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey, ok := m.extractAPIKey(r)
		if !ok {
			m.logger.WarnContext(r.Context(), "missing API key",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			unauthorized(w, ErrNoAPIKey.Error())
			return
		}

		keyInfo, err := m.validator.Validate(apiKey)
		if err != nil {
			m.logger.WarnContext(r.Context(), "rejected API key",
				"error", err,
				"key", logging.RedactAPIKey(apiKey),
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			unauthorized(w, err.Error())
			return
		}

		m.logger.DebugContext(r.Context(), "API key authenticated",
			"user_id", keyInfo.UserID,
			"path", r.URL.Path,
		)

		ctx := context.WithValue(r.Context(), apiKeyInfoKey, keyInfo)
		ctx = logging.WithActor(ctx, keyInfo.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractAPIKey returns the key from the first source that carries one.
func (m *APIKeyMiddleware) extractAPIKey(r *http.Request) (string, bool) {
	for _, source := range m.sources {
		var value string
		switch source.Type {
		case "header":
			value = r.Header.Get(source.Name)
			if value != "" && source.Scheme != "" {
				prefix := source.Scheme + " "
				if !strings.HasPrefix(value, prefix) {
					continue
				}
				value = strings.TrimPrefix(value, prefix)
			}
		case "query":
			value = r.URL.Query().Get(source.Name)
		}
		if value = strings.TrimSpace(value); value != "" {
			return value, true
		}
	}
	return "", false
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="heimdall"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}
