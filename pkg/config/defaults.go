package config

import "time"

// Default values for configuration fields.
const (
	DefaultEnvironment = "development"

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8480"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = int64(1 << 20)
	DefaultRateLimitRPS    = 20.0
	DefaultRateLimitBurst  = 40

	// State storage defaults
	DefaultStoragePath               = "data/heimdall.db"
	DefaultStorageBusyTimeout        = 5 * time.Second
	DefaultStorageCheckpointInterval = 5 * time.Minute

	// Audit defaults
	DefaultAuditBackend              = "sqlite"
	DefaultAuditSQLitePath           = "data/audit.db"
	DefaultAuditSQLiteMaxOpenConns   = 10
	DefaultAuditSQLiteMaxIdleConns   = 5
	DefaultAuditSQLiteBusyTimeout    = 5 * time.Second
	DefaultAuditRecorderAsyncBuffer  = 1000
	DefaultAuditRecorderWriteTimeout = 5 * time.Second
	DefaultAuditRetentionDays        = 365
	DefaultAuditRetentionSchedule    = "0 3 * * *"
	DefaultAuditRetentionArchivePath = "data/archives/"
	DefaultAuditQueryDefaultLimit    = 100
	DefaultAuditQueryMaxLimit        = 1000

	// Tripwire defaults
	DefaultTripwireSchedule = "*/5 * * * *"
	DefaultTripwireActor    = "system"

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultMetricsPath         = "/metrics"
	DefaultMetricsNamespace    = "heimdall"
	DefaultMetricsSubsystem    = "governance"
	DefaultTracingSampler      = "ratio"
	DefaultTracingSampleRatio  = 1.0
	DefaultTracingExporter     = "otlp"
	DefaultTracingEndpoint     = "localhost:4317"
	DefaultTracingServiceName  = "heimdall"
	DefaultTracingOTLPTimeout  = 10 * time.Second
	DefaultHealthLivenessPath  = "/health"
	DefaultHealthReadinessPath = "/ready"
	DefaultHealthCheckTimeout  = 5 * time.Second

	// Secrets defaults
	DefaultSecretEnvPrefix = "HEIMDALL_SECRET_"
	DefaultSecretCacheTTL  = 5 * time.Minute
)

// Default route classification for execution-class enforcement.
var (
	DefaultProdExecPrefixes = []string{
		"/api/deals",
		"/api/intake",
		"/api/buyers",
		"/api/capital",
		"/api/alerts",
		"/api/notify",
		"/api/followups",
	}
	DefaultSandboxExecPrefixes = []string{"/api/sandbox"}
	DefaultExemptPrefixes      = []string{
		"/health",
		"/ready",
		"/metrics",
		"/version",
		"/api/admin",
		"/api/governance",
		"/api/engines",
		"/api/guard",
		"/api/audit",
		"/api/kpi",
		"/api/tripwire",
	}
)

// DefaultTripwirePolicies is the disabled starter set installed when no
// policies are configured. Operators enable them once KPI events flow.
func DefaultTripwirePolicies() []TripwirePolicy {
	base := TripwirePolicy{WindowEvents: 50, BaselineEvents: 200, MinEvents: 50}

	wholesaleContracts := base
	wholesaleContracts.Domain, wholesaleContracts.Metric = "WHOLESALE", "contract_rate"
	wholesaleContracts.MaxDropFraction = 0.20
	wholesaleContracts.Action, wholesaleContracts.Engine = "STEP_DOWN", "wholesale"

	wholesaleOffers := base
	wholesaleOffers.Domain, wholesaleOffers.Metric = "WHOLESALE", "offer_accept_rate"
	wholesaleOffers.MaxDropFraction = 0.15
	wholesaleOffers.Action, wholesaleOffers.Engine = "STEP_DOWN", "wholesale"

	buyerMatch := base
	buyerMatch.Domain, buyerMatch.Metric = "BUYER_MATCH", "match_success"
	buyerMatch.MaxDropFraction = 0.25
	buyerMatch.Action, buyerMatch.Engine = "STEP_DOWN", "buyer_match"

	capital := base
	capital.Domain, capital.Metric = "CAPITAL", "roi_event"
	capital.MaxDropFraction = 0.30
	capital.Action = "KILL_SWITCH"

	return []TripwirePolicy{wholesaleContracts, wholesaleOffers, buyerMatch, capital}
}

// Defaults returns a configuration with every field at its default. The
// loader decodes YAML on top of it, so omitted booleans keep their defaults
// while explicit false values are respected.
func Defaults() *Config {
	cfg := &Config{}
	cfg.Audit.Enabled = true
	cfg.Audit.SQLite.WALMode = true
	cfg.Audit.Recorder.RecordAllowed = true
	cfg.Audit.Retention.ArchiveBeforeDelete = true
	cfg.Audit.Export.JSONPretty = true
	cfg.Audit.Export.CSVIncludeHeader = true
	cfg.Telemetry.Metrics.Enabled = true
	cfg.Telemetry.Logging.RedactPII = true
	cfg.Telemetry.Tracing.OTLP.Insecure = true
	cfg.Audit.Retention.Days = DefaultAuditRetentionDays
	cfg.Tripwire.Policies = DefaultTripwirePolicies()

	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields. Booleans are left untouched. It is
// idempotent.
func ApplyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = DefaultEnvironment
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Server.RateLimit.RequestsPerSecond == 0 {
		cfg.Server.RateLimit.RequestsPerSecond = DefaultRateLimitRPS
	}
	if cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = DefaultRateLimitBurst
	}

	// Storage defaults
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.BusyTimeout == 0 {
		cfg.Storage.BusyTimeout = DefaultStorageBusyTimeout
	}
	if cfg.Storage.CheckpointInterval == 0 {
		cfg.Storage.CheckpointInterval = DefaultStorageCheckpointInterval
	}

	applyAuditDefaults(&cfg.Audit)

	// Gate defaults
	if cfg.Gate.ProdExecPrefixes == nil {
		cfg.Gate.ProdExecPrefixes = append([]string(nil), DefaultProdExecPrefixes...)
	}
	if cfg.Gate.SandboxExecPrefixes == nil {
		cfg.Gate.SandboxExecPrefixes = append([]string(nil), DefaultSandboxExecPrefixes...)
	}
	if cfg.Gate.ExemptPrefixes == nil {
		cfg.Gate.ExemptPrefixes = append([]string(nil), DefaultExemptPrefixes...)
	}

	// Tripwire defaults
	if cfg.Tripwire.Schedule == "" {
		cfg.Tripwire.Schedule = DefaultTripwireSchedule
	}
	if cfg.Tripwire.Actor == "" {
		cfg.Tripwire.Actor = DefaultTripwireActor
	}

	applyTelemetryDefaults(&cfg.Telemetry)

	// Security defaults
	if len(cfg.Security.Authentication.Sources) == 0 {
		cfg.Security.Authentication.Sources = []APIKeySource{
			{Type: "header", Name: "Authorization", Scheme: "Bearer"},
			{Type: "header", Name: "X-API-Key"},
		}
	}
	if cfg.Security.Secrets.EnvPrefix == "" {
		cfg.Security.Secrets.EnvPrefix = DefaultSecretEnvPrefix
	}
	if cfg.Security.Secrets.CacheTTL == 0 {
		cfg.Security.Secrets.CacheTTL = DefaultSecretCacheTTL
	}
}

func applyAuditDefaults(cfg *AuditConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultAuditBackend
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.SQLite.MaxOpenConns == 0 {
		cfg.SQLite.MaxOpenConns = DefaultAuditSQLiteMaxOpenConns
	}
	if cfg.SQLite.MaxIdleConns == 0 {
		cfg.SQLite.MaxIdleConns = DefaultAuditSQLiteMaxIdleConns
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultAuditSQLiteBusyTimeout
	}
	if cfg.Recorder.AsyncBuffer == 0 {
		cfg.Recorder.AsyncBuffer = DefaultAuditRecorderAsyncBuffer
	}
	if cfg.Recorder.WriteTimeout == 0 {
		cfg.Recorder.WriteTimeout = DefaultAuditRecorderWriteTimeout
	}
	if cfg.Retention.PruneSchedule == "" {
		cfg.Retention.PruneSchedule = DefaultAuditRetentionSchedule
	}
	if cfg.Retention.ArchivePath == "" {
		cfg.Retention.ArchivePath = DefaultAuditRetentionArchivePath
	}
	if cfg.Query.DefaultLimit == 0 {
		cfg.Query.DefaultLimit = DefaultAuditQueryDefaultLimit
	}
	if cfg.Query.MaxLimit == 0 {
		cfg.Query.MaxLimit = DefaultAuditQueryMaxLimit
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Metrics.RequestDurationBuckets) == 0 {
		cfg.Metrics.RequestDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}
	}

	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = DefaultTracingExporter
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Tracing.OTLP.Timeout == 0 {
		cfg.Tracing.OTLP.Timeout = DefaultTracingOTLPTimeout
	}

	if cfg.Health.LivenessPath == "" {
		cfg.Health.LivenessPath = DefaultHealthLivenessPath
	}
	if cfg.Health.ReadinessPath == "" {
		cfg.Health.ReadinessPath = DefaultHealthReadinessPath
	}
	if cfg.Health.CheckTimeout == 0 {
		cfg.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
