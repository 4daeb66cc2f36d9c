package config

import "time"

// Config is the root configuration structure for Heimdall.
type Config struct {
	// Environment names the deployment ("development", "staging",
	// "production"). Execution-class enforcement only applies in production.
	// Default: "development"
	Environment string `yaml:"environment"`

	// Server contains the admin HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Storage contains the engine and go-live state database configuration.
	Storage StorageConfig `yaml:"storage"`

	// Audit contains governance audit trail configuration.
	Audit AuditConfig `yaml:"audit"`

	// Gate contains execution-class enforcement for HTTP routes.
	Gate GateConfig `yaml:"gate"`

	// Tripwire contains KPI regression tripwire configuration.
	Tripwire TripwireConfig `yaml:"tripwire"`

	// Telemetry contains logging, metrics, tracing and health configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Security contains admin API authentication.
	Security SecurityConfig `yaml:"security"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8480"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	// Default: 15s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes limits JSON request bodies.
	// Default: 1MB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// RateLimit throttles API requests per client address.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	// Enabled turns rate limiting on. Probes and /metrics are never limited.
	Enabled bool `yaml:"enabled"`

	// RequestsPerSecond is the sustained rate per client.
	// Default: 20
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the bucket size.
	// Default: 40
	Burst int `yaml:"burst"`
}

// StorageConfig contains the state database configuration.
type StorageConfig struct {
	// Path is the SQLite file holding engines, the go-live record, KPI
	// events and tripwire evaluations.
	// Default: "data/heimdall.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// CheckpointInterval is how often the WAL is checkpointed. 0 disables it.
	// Default: 5m
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
}

// AuditConfig contains audit trail configuration.
type AuditConfig struct {
	// Enabled controls whether governance events are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite backend settings.
	SQLite AuditSQLiteConfig `yaml:"sqlite"`

	// Recorder contains recorder settings.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention contains pruning settings.
	Retention RetentionConfig `yaml:"retention"`

	// Query contains query limits for the API and CLI.
	Query QueryConfig `yaml:"query"`

	// Export contains export formatting.
	Export ExportConfig `yaml:"export"`
}

// AuditSQLiteConfig contains SQLite settings for the audit store.
type AuditSQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig contains audit recorder settings.
type RecorderConfig struct {
	// AsyncBuffer is the queue size for guard decision records.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds a single write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RecordAllowed also records allowed guard decisions. Blocked decisions
	// and every state change are always recorded.
	// Default: true
	RecordAllowed bool `yaml:"record_allowed"`
}

// RetentionConfig contains audit retention settings.
type RetentionConfig struct {
	// Days to keep records. 0 keeps them forever.
	// Default: 365
	Days int `yaml:"days"`

	// PruneSchedule is a cron expression.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// ArchiveBeforeDelete exports pruned records to ArchivePath.
	// Default: true
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// ArchivePath is the archive directory.
	// Default: "data/archives/"
	ArchivePath string `yaml:"archive_path"`

	// MaxRecords caps the trail size. 0 means unlimited.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`
}

// QueryConfig contains audit query limits.
type QueryConfig struct {
	// DefaultLimit applies when a query has no limit.
	// Default: 100
	DefaultLimit int `yaml:"default_limit"`

	// MaxLimit is the largest accepted limit.
	// Default: 1000
	MaxLimit int `yaml:"max_limit"`
}

// ExportConfig contains export formatting.
type ExportConfig struct {
	// JSONPretty indents JSON output.
	// Default: true
	JSONPretty bool `yaml:"json_pretty"`

	// CSVIncludeHeader writes a CSV header row.
	// Default: true
	CSVIncludeHeader bool `yaml:"csv_include_header"`
}

// GateConfig contains execution-class enforcement for HTTP routes.
type GateConfig struct {
	// Enforce turns on route blocking by the kill switch and go-live flag.
	// Only effective when Environment is production.
	// Default: false
	Enforce bool `yaml:"enforce"`

	// ProdExecPrefixes are path prefixes classified PROD_EXEC.
	ProdExecPrefixes []string `yaml:"prod_exec_prefixes"`

	// SandboxExecPrefixes are path prefixes classified SANDBOX_EXEC.
	SandboxExecPrefixes []string `yaml:"sandbox_exec_prefixes"`

	// ExemptPrefixes always pass, even with the kill switch engaged.
	ExemptPrefixes []string `yaml:"exempt_prefixes"`
}

// TripwireConfig contains KPI regression tripwire configuration.
type TripwireConfig struct {
	// Enabled runs scheduled evaluation of all enabled policies.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression for sweeps.
	// Default: "*/5 * * * *"
	Schedule string `yaml:"schedule"`

	// Actor is recorded as changed_by when a tripwire fires.
	// Default: "system"
	Actor string `yaml:"actor"`

	// Policies are the regression policies. When empty, a disabled default
	// set is installed.
	Policies []TripwirePolicy `yaml:"policies"`
}

// TripwirePolicy configures one KPI regression check.
type TripwirePolicy struct {
	Domain          string  `yaml:"domain"`
	Metric          string  `yaml:"metric"`
	WindowEvents    int     `yaml:"window_events"`
	BaselineEvents  int     `yaml:"baseline_events"`
	MinEvents       int     `yaml:"min_events"`
	MaxDropFraction float64 `yaml:"max_drop_fraction"`

	// Action is "KILL_SWITCH" or "STEP_DOWN".
	Action string `yaml:"action"`

	// Engine is stepped down ACTIVE -> SANDBOX when Action is STEP_DOWN.
	Engine string `yaml:"engine,omitempty"`

	Enabled bool `yaml:"enabled"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII redacts API keys and e-mail addresses in log attributes.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns contains custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "heimdall"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "governance"
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets defines HTTP duration buckets (seconds).
	// Default: [0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio", "parent_based"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Exporter determines the trace exporter.
	// Options: "otlp", "log" (spans written to the structured log)
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the trace collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "heimdall"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter settings.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness probe.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual component checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// SecurityConfig contains security configuration.
type SecurityConfig struct {
	// Authentication contains admin API key authentication.
	Authentication AuthenticationConfig `yaml:"authentication"`

	// Secrets configures where key_secret references are resolved.
	Secrets SecretsConfig `yaml:"secrets"`
}

// SecretsConfig configures secret resolution for admin API keys.
type SecretsConfig struct {
	// EnvPrefix is prepended to secret names looked up in the environment.
	// Default: "HEIMDALL_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir is a directory holding one file per secret, e.g. a mounted
	// Kubernetes secret. Files must not be group or world readable.
	// Empty disables the file provider.
	Dir string `yaml:"dir"`

	// CacheTTL bounds how long a resolved secret is reused.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// AuthenticationConfig contains API key authentication configuration.
type AuthenticationConfig struct {
	// Enabled controls whether admin routes require an API key.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sources defines where to extract API keys from.
	// Default: Authorization: Bearer, X-API-Key
	Sources []APIKeySource `yaml:"sources"`

	// Keys is the list of valid API keys.
	Keys []APIKeyConfig `yaml:"keys"`
}

// APIKeySource defines where to extract API keys from in HTTP requests.
type APIKeySource struct {
	// Type is the source type.
	// Options: "header", "query"
	Type string `yaml:"type"`

	// Name is the header or query parameter name.
	Name string `yaml:"name"`

	// Scheme is the header scheme, e.g. "Bearer". Empty means the raw value.
	Scheme string `yaml:"scheme,omitempty"`
}

// APIKeyConfig contains configuration for a single API key.
type APIKeyConfig struct {
	// Key is the API key value.
	Key string `yaml:"key"`

	// KeySecret names a secret holding the key value. It is resolved at
	// startup and on every reload, and takes precedence over Key.
	KeySecret string `yaml:"key_secret"`

	// UserID identifies the operator. It is the default changed_by.
	UserID string `yaml:"user_id"`

	// Enabled controls whether this key is accepted.
	Enabled bool `yaml:"enabled"`
}
