package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HEIMDALL_"

// LoadConfig loads configuration from a YAML file. The file is decoded on top
// of Defaults, so omitted fields keep their default values. Environment
// variables are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML over the defaults without validating. Unknown keys are
// rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()

	// An explicit policy list replaces the seed set rather than merging
	// into it element by element.
	cfg.Tripwire.Policies = nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if cfg.Tripwire.Policies == nil {
		cfg.Tripwire.Policies = DefaultTripwirePolicies()
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Variables follow HEIMDALL_SECTION_FIELD
// (e.g. HEIMDALL_SERVER_LISTEN_ADDRESS) and always win over the file.
//
// The loading sequence is:
// 1. Decode YAML over defaults
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// LoadDefaultsWithEnvOverrides returns the defaults with environment
// overrides applied. It backs commands run without a configuration file.
func LoadDefaultsWithEnvOverrides() (*Config, error) {
	cfg := Defaults()
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	envString("ENVIRONMENT", &cfg.Environment)

	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envBool("SERVER_RATE_LIMIT_ENABLED", &cfg.Server.RateLimit.Enabled)
	envFloat("SERVER_RATE_LIMIT_RPS", &cfg.Server.RateLimit.RequestsPerSecond)
	envInt("SERVER_RATE_LIMIT_BURST", &cfg.Server.RateLimit.Burst)

	// Storage overrides
	envString("STORAGE_PATH", &cfg.Storage.Path)
	envDuration("STORAGE_BUSY_TIMEOUT", &cfg.Storage.BusyTimeout)

	// Audit overrides
	envBool("AUDIT_ENABLED", &cfg.Audit.Enabled)
	envString("AUDIT_BACKEND", &cfg.Audit.Backend)
	envString("AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path)
	envBool("AUDIT_RECORDER_RECORD_ALLOWED", &cfg.Audit.Recorder.RecordAllowed)
	envInt("AUDIT_RETENTION_DAYS", &cfg.Audit.Retention.Days)
	envString("AUDIT_RETENTION_PRUNE_SCHEDULE", &cfg.Audit.Retention.PruneSchedule)
	envString("AUDIT_RETENTION_ARCHIVE_PATH", &cfg.Audit.Retention.ArchivePath)
	envInt64("AUDIT_RETENTION_MAX_RECORDS", &cfg.Audit.Retention.MaxRecords)

	// Gate overrides
	envBool("GATE_ENFORCE", &cfg.Gate.Enforce)
	envList("GATE_PROD_EXEC_PREFIXES", &cfg.Gate.ProdExecPrefixes)
	envList("GATE_SANDBOX_EXEC_PREFIXES", &cfg.Gate.SandboxExecPrefixes)
	envList("GATE_EXEMPT_PREFIXES", &cfg.Gate.ExemptPrefixes)

	// Tripwire overrides
	envBool("TRIPWIRE_ENABLED", &cfg.Tripwire.Enabled)
	envString("TRIPWIRE_SCHEDULE", &cfg.Tripwire.Schedule)
	envString("TRIPWIRE_ACTOR", &cfg.Tripwire.Actor)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_EXPORTER", &cfg.Telemetry.Tracing.Exporter)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)

	// Security overrides
	envBool("SECURITY_AUTHENTICATION_ENABLED", &cfg.Security.Authentication.Enabled)
	envString("SECURITY_SECRETS_DIR", &cfg.Security.Secrets.Dir)

	// A single operator key can be supplied without a file, e.g. in CI.
	if key := os.Getenv(EnvPrefix + "SECURITY_API_KEY"); key != "" {
		user := os.Getenv(EnvPrefix + "SECURITY_API_KEY_USER")
		if user == "" {
			user = "operator"
		}
		cfg.Security.Authentication.Keys = append(cfg.Security.Authentication.Keys,
			APIKeyConfig{Key: key, UserID: user, Enabled: true})
	}
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envInt64(name string, dst *int64) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = i
		}
	}
}

func envFloat(name string, dst *float64) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

// envList reads a comma-separated list. Empty elements are dropped.
func envList(name string, dst *[]string) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return
	}
	out := []string{}
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}
