package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestRecorder receives one observation per completed request.
// *metrics.Collector implements it.
type RequestRecorder interface {
	RecordHTTPRequest(route, method string, status int, duration time.Duration)
}

// LoggingMiddleware logs each request and records it with rec, which may be
// nil. Requests are labelled by their matched route pattern so that path
// parameters do not create new series.
//
// Log format (JSON):
//
//	{
//	  "time": "2026-10-19T10:30:00Z",
//	  "level": "INFO",
//	  "msg": "request completed",
//	  "method": "POST",
//	  "route": "POST /api/guard/check",
//	  "path": "/api/guard/check",
//	  "status": 403,
//	  "latency_ms": 2,
//	  "request_id": "0f1d..."
//	}
func LoggingMiddleware(rec RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			// The mux records the matched pattern on the request it is given.
			req := r.WithContext(r.Context())
			next.ServeHTTP(rw, req)

			latency := time.Since(start)
			route := req.Pattern
			if route == "" {
				route = "unmatched"
			}

			level := slog.LevelInfo
			if rw.statusCode >= 500 {
				level = slog.LevelError
			} else if rw.statusCode >= 400 {
				level = slog.LevelWarn
			}

			slog.Log(r.Context(), level, "request completed",
				"method", r.Method,
				"route", route,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"latency_ms", latency.Milliseconds(),
				"remote_addr", r.RemoteAddr,
			)

			if rec != nil {
				rec.RecordHTTPRequest(route, r.Method, rw.statusCode, latency)
			}
		})
	}
}
