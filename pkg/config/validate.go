package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Has reports whether a field error was recorded for field.
func (e ValidationError) Has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Validate checks the whole configuration and returns a ValidationError
// holding every failed rule, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateEnvironment(cfg.Environment)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateGate(&cfg.Gate)...)
	errs = append(errs, validateTripwire(&cfg.Tripwire)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateSecurity(&cfg.Security)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// IsProduction reports whether the environment name denotes production.
// Execution-class enforcement only takes effect there.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "prod", "production", "live":
		return true
	}
	return false
}

func validateEnvironment(env string) []FieldError {
	if strings.TrimSpace(env) == "" {
		return []FieldError{{Field: "environment", Message: "environment is required"}}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"server.read_timeout", cfg.ReadTimeout},
		{"server.write_timeout", cfg.WriteTimeout},
		{"server.idle_timeout", cfg.IdleTimeout},
		{"server.shutdown_timeout", cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value < 0 {
			errs = append(errs, FieldError{Field: d.field, Message: "timeout must be positive"})
		}
	}

	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_body_bytes",
			Message: "max body bytes must be non-negative",
		})
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, FieldError{
				Field:   "server.rate_limit.requests_per_second",
				Message: "requests per second must be positive",
			})
		}
		if cfg.RateLimit.Burst <= 0 {
			errs = append(errs, FieldError{
				Field:   "server.rate_limit.burst",
				Message: "burst must be positive",
			})
		}
	}

	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "storage.path",
			Message: "state database path is required",
		})
	}
	if cfg.BusyTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.busy_timeout",
			Message: "busy timeout must be positive",
		})
	}
	if cfg.CheckpointInterval < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.checkpoint_interval",
			Message: "checkpoint interval must be non-negative",
		})
	}

	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "audit.sqlite.path",
				Message: "SQLite path is required for the sqlite backend",
			})
		}
		if cfg.SQLite.MaxOpenConns < 0 {
			errs = append(errs, FieldError{
				Field:   "audit.sqlite.max_open_conns",
				Message: "max open connections must be non-negative",
			})
		}
		if cfg.SQLite.MaxIdleConns > cfg.SQLite.MaxOpenConns && cfg.SQLite.MaxOpenConns > 0 {
			errs = append(errs, FieldError{
				Field:   "audit.sqlite.max_idle_conns",
				Message: "max idle connections cannot exceed max open connections",
			})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'sqlite' or 'memory'", cfg.Backend),
		})
	}

	if cfg.Recorder.AsyncBuffer < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.recorder.async_buffer",
			Message: "async buffer must be non-negative",
		})
	}
	if cfg.Recorder.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.recorder.write_timeout",
			Message: "write timeout must be positive",
		})
	}

	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.retention.days",
			Message: "retention days must be non-negative (0 keeps records forever)",
		})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.retention.max_records",
			Message: "max records must be non-negative (0 means unlimited)",
		})
	}
	if cfg.Retention.PruneSchedule != "" {
		if err := validateCron(cfg.Retention.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "audit.retention.prune_schedule",
				Message: err.Error(),
			})
		}
	}
	if cfg.Retention.ArchiveBeforeDelete && cfg.Retention.ArchivePath == "" {
		errs = append(errs, FieldError{
			Field:   "audit.retention.archive_path",
			Message: "archive path is required when archive_before_delete is enabled",
		})
	}

	if cfg.Query.DefaultLimit <= 0 {
		errs = append(errs, FieldError{
			Field:   "audit.query.default_limit",
			Message: "default limit must be positive",
		})
	}
	if cfg.Query.MaxLimit < cfg.Query.DefaultLimit {
		errs = append(errs, FieldError{
			Field:   "audit.query.max_limit",
			Message: "max limit cannot be lower than the default limit",
		})
	}

	return errs
}

func validateGate(cfg *GateConfig) []FieldError {
	var errs []FieldError

	lists := []struct {
		field    string
		prefixes []string
	}{
		{"gate.prod_exec_prefixes", cfg.ProdExecPrefixes},
		{"gate.sandbox_exec_prefixes", cfg.SandboxExecPrefixes},
		{"gate.exempt_prefixes", cfg.ExemptPrefixes},
	}
	for _, l := range lists {
		for i, p := range l.prefixes {
			if !strings.HasPrefix(p, "/") {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("%s[%d]", l.field, i),
					Message: fmt.Sprintf("prefix %q must start with /", p),
				})
			}
		}
	}

	return errs
}

func validateTripwire(cfg *TripwireConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled {
		if err := validateCron(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{Field: "tripwire.schedule", Message: err.Error()})
		}
	}
	if strings.TrimSpace(cfg.Actor) == "" {
		errs = append(errs, FieldError{Field: "tripwire.actor", Message: "actor is required"})
	}

	seen := make(map[string]bool)
	for i, p := range cfg.Policies {
		prefix := fmt.Sprintf("tripwire.policies[%d]", i)

		if p.Domain == "" || p.Metric == "" {
			errs = append(errs, FieldError{
				Field:   prefix,
				Message: "domain and metric are required",
			})
		}
		key := p.Domain + "." + p.Metric
		if seen[key] {
			errs = append(errs, FieldError{
				Field:   prefix,
				Message: fmt.Sprintf("duplicate policy for %s", key),
			})
		}
		seen[key] = true

		if p.WindowEvents <= 0 || p.BaselineEvents <= 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".window_events",
				Message: "window_events and baseline_events must be positive",
			})
		}
		if p.MinEvents < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".min_events",
				Message: "min_events must be non-negative",
			})
		}
		if p.MaxDropFraction <= 0 || p.MaxDropFraction > 1.0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".max_drop_fraction",
				Message: "max_drop_fraction must be in (0.0, 1.0]",
			})
		}

		switch p.Action {
		case "KILL_SWITCH":
		case "STEP_DOWN":
			if strings.TrimSpace(p.Engine) == "" {
				errs = append(errs, FieldError{
					Field:   prefix + ".engine",
					Message: "engine is required for STEP_DOWN",
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   prefix + ".action",
				Message: fmt.Sprintf("invalid action %q: must be 'KILL_SWITCH' or 'STEP_DOWN'", p.Action),
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true, "parent_based": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}
	if cfg.Tracing.Exporter != "otlp" && cfg.Tracing.Exporter != "log" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.exporter",
			Message: fmt.Sprintf("invalid exporter %q: must be 'otlp' or 'log'", cfg.Tracing.Exporter),
		})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Exporter == "otlp" && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}

	for _, p := range []struct{ field, path string }{
		{"telemetry.health.liveness_path", cfg.Health.LivenessPath},
		{"telemetry.health.readiness_path", cfg.Health.ReadinessPath},
	} {
		if !strings.HasPrefix(p.path, "/") {
			errs = append(errs, FieldError{Field: p.field, Message: "path must start with /"})
		}
	}
	if cfg.Health.CheckTimeout > 60*time.Second {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout exceeds reasonable limit (60s)",
		})
	}

	return errs
}

func validateSecurity(cfg *SecurityConfig) []FieldError {
	var errs []FieldError
	auth := &cfg.Authentication

	for i, src := range auth.Sources {
		if src.Type != "header" && src.Type != "query" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("security.authentication.sources[%d].type", i),
				Message: fmt.Sprintf("invalid source type %q: must be 'header' or 'query'", src.Type),
			})
		}
		if src.Name == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("security.authentication.sources[%d].name", i),
				Message: "source name is required",
			})
		}
	}

	enabledKeys := 0
	for i, k := range auth.Keys {
		if k.Key == "" && k.KeySecret == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("security.authentication.keys[%d].key", i),
				Message: "key or key_secret is required",
			})
		}
		if k.UserID == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("security.authentication.keys[%d].user_id", i),
				Message: "user_id is required",
			})
		}
		if k.Enabled {
			enabledKeys++
		}
	}
	if cfg.Secrets.CacheTTL < 0 {
		errs = append(errs, FieldError{
			Field:   "security.secrets.cache_ttl",
			Message: "must not be negative",
		})
	}
	if auth.Enabled && enabledKeys == 0 {
		errs = append(errs, FieldError{
			Field:   "security.authentication.keys",
			Message: "at least one enabled key is required when authentication is enabled",
		})
	}

	return errs
}

func validateCron(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("schedule is required")
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %v", expr, err)
	}
	return nil
}
