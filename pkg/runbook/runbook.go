package runbook

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"valhalla-hq/heimdall/pkg/config"
	"valhalla-hq/heimdall/pkg/engine"
	"valhalla-hq/heimdall/pkg/golive"
	"valhalla-hq/heimdall/pkg/tripwire"
)

// Severity ranks a check.
type Severity string

const (
	SeverityBlocker Severity = "BLOCKER"
	SeverityWarn    Severity = "WARN"
	SeverityInfo    Severity = "INFO"
)

// Check IDs.
const (
	CheckGoLiveState       = "go_live_state"
	CheckKillSwitchClear   = "kill_switch_clear"
	CheckEnvSanity         = "env_sanity"
	CheckAuditStore        = "audit_store_reachable"
	CheckTripwirePolicies  = "regression_policies_present"
	CheckEnginesActive     = "engines_active"
	CheckGateEnforced      = "gate_enforced"
	CheckAuthEnabled       = "admin_auth_enabled"
	CheckRunbookFatal      = "runbook_fatal"
	CheckGoLiveCurrentFlag = "go_live_enabled"
)

// Item is the result of one check.
type Item struct {
	ID       string         `json:"id"`
	OK       bool           `json:"ok"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Detail   map[string]any `json:"detail,omitempty"`
}

// Report groups check results. Passing checks and INFO checks are listed
// under Info.
type Report struct {
	GeneratedAt      time.Time `json:"generated_at"`
	Blockers         []Item    `json:"blockers"`
	Warnings         []Item    `json:"warnings"`
	Info             []Item    `json:"info"`
	OKToEnableGoLive bool      `json:"ok_to_enable_go_live"`
}

// Sources are what the checks read. Nil functions are reported as failing
// blockers.
type Sources struct {
	Config    *config.Config
	Gate      func(ctx context.Context) (golive.State, error)
	Engines   func(ctx context.Context) ([]*engine.Record, error)
	AuditPing func(ctx context.Context) error
	Policies  func() []tripwire.Policy
}

// Builder evaluates the readiness checks.
type Builder struct {
	sources Sources
	cfg     atomic.Pointer[config.Config]
	clock   func() time.Time
	logger  *slog.Logger
}

// New creates a Builder over sources.
func New(sources Sources) *Builder {
	b := &Builder{
		sources: sources,
		clock:   time.Now,
		logger:  slog.Default().With("component", "runbook"),
	}
	b.cfg.Store(sources.Config)
	return b
}

// SetConfig replaces the configuration the environment checks read.
func (b *Builder) SetConfig(cfg *config.Config) {
	b.cfg.Store(cfg)
}

// WithClock overrides the clock used for GeneratedAt.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// Build runs every check and aggregates the report.
func (b *Builder) Build(ctx context.Context) (report *Report) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("runbook check panicked", "panic", r)
			report = &Report{
				GeneratedAt: b.clock().UTC(),
				Blockers: []Item{{
					ID:       CheckRunbookFatal,
					Severity: SeverityBlocker,
					Message:  "Runbook engine crashed",
					Detail:   map[string]any{"error": fmt.Sprint(r)},
				}},
				Warnings: []Item{},
				Info:     []Item{},
			}
		}
	}()

	var items []Item
	items = append(items, b.gateChecks(ctx)...)
	items = append(items, b.envChecks()...)
	items = append(items, b.auditCheck(ctx))
	items = append(items, b.policyCheck())
	items = append(items, b.engineCheck(ctx))

	report = &Report{
		GeneratedAt: b.clock().UTC(),
		Blockers:    []Item{},
		Warnings:    []Item{},
		Info:        []Item{},
	}
	for _, it := range items {
		switch {
		case it.Severity == SeverityBlocker && !it.OK:
			report.Blockers = append(report.Blockers, it)
		case it.Severity == SeverityWarn && !it.OK:
			report.Warnings = append(report.Warnings, it)
		default:
			report.Info = append(report.Info, it)
		}
	}
	report.OKToEnableGoLive = len(report.Blockers) == 0

	b.logger.Debug("runbook built",
		"blockers", len(report.Blockers),
		"warnings", len(report.Warnings),
		"ok_to_enable_go_live", report.OKToEnableGoLive,
	)
	return report
}

func (b *Builder) gateChecks(ctx context.Context) []Item {
	if b.sources.Gate == nil {
		return []Item{missing(CheckGoLiveState, "Go-live state reader missing")}
	}

	st, err := b.sources.Gate(ctx)
	if err != nil {
		return []Item{{
			ID:       CheckGoLiveState,
			Severity: SeverityBlocker,
			Message:  "Go-live state could not be read",
			Detail:   map[string]any{"error": err.Error()},
		}}
	}

	detail := map[string]any{
		"kill_switch_engaged": st.KillSwitchEngaged,
		"go_live_enabled":     st.GoLiveEnabled,
		"changed_by":          st.ChangedBy,
		"updated_at":          st.UpdatedAt,
	}
	return []Item{
		{
			ID:       CheckKillSwitchClear,
			OK:       !st.KillSwitchEngaged,
			Severity: SeverityBlocker,
			Message:  "Kill switch must be disengaged for production execution",
			Detail:   detail,
		},
		{
			ID:       CheckGoLiveCurrentFlag,
			OK:       true,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("Go-live is currently %s", onOff(st.GoLiveEnabled)),
		},
	}
}

func (b *Builder) envChecks() []Item {
	cfg := b.cfg.Load()
	if cfg == nil {
		return []Item{missing(CheckEnvSanity, "Configuration missing")}
	}

	env := strings.TrimSpace(cfg.Environment)
	items := []Item{{
		ID:       CheckEnvSanity,
		OK:       env != "" && cfg.Storage.Path != "",
		Severity: SeverityBlocker,
		Message:  "Environment and state database path must be set",
		Detail: map[string]any{
			"environment":  env,
			"storage_path": cfg.Storage.Path,
		},
	}}

	if cfg.IsProduction() {
		items = append(items,
			Item{
				ID:       CheckGateEnforced,
				OK:       cfg.Gate.Enforce,
				Severity: SeverityWarn,
				Message:  "Execution-class enforcement should be on in production",
			},
			Item{
				ID:       CheckAuthEnabled,
				OK:       cfg.Security.Authentication.Enabled,
				Severity: SeverityWarn,
				Message:  "Admin routes should require an API key in production",
			},
		)
	}
	return items
}

func (b *Builder) auditCheck(ctx context.Context) Item {
	if cfg := b.cfg.Load(); cfg != nil && !cfg.Audit.Enabled {
		return Item{
			ID:       CheckAuditStore,
			Severity: SeverityWarn,
			Message:  "Audit trail is disabled",
		}
	}
	if b.sources.AuditPing == nil {
		return missing(CheckAuditStore, "Audit store missing")
	}

	item := Item{
		ID:       CheckAuditStore,
		OK:       true,
		Severity: SeverityBlocker,
		Message:  "Audit store must be reachable",
	}
	if err := b.sources.AuditPing(ctx); err != nil {
		item.OK = false
		item.Detail = map[string]any{"error": err.Error()}
	}
	return item
}

func (b *Builder) policyCheck() Item {
	if b.sources.Policies == nil {
		return missing(CheckTripwirePolicies, "Regression tripwire missing")
	}

	var enabled int
	policies := b.sources.Policies()
	for _, p := range policies {
		if p.Enabled {
			enabled++
		}
	}
	return Item{
		ID:       CheckTripwirePolicies,
		OK:       enabled > 0,
		Severity: SeverityBlocker,
		Message:  "Regression tripwire policies must exist and be enabled",
		Detail:   map[string]any{"count": len(policies), "enabled": enabled},
	}
}

func (b *Builder) engineCheck(ctx context.Context) Item {
	if b.sources.Engines == nil {
		return missing(CheckEnginesActive, "Engine store missing")
	}

	records, err := b.sources.Engines(ctx)
	if err != nil {
		return Item{
			ID:       CheckEnginesActive,
			Severity: SeverityBlocker,
			Message:  "Engine states could not be read",
			Detail:   map[string]any{"error": err.Error()},
		}
	}

	var active []string
	for _, rec := range records {
		if rec.State == engine.StateActive {
			active = append(active, rec.Key)
		}
	}
	return Item{
		ID:       CheckEnginesActive,
		OK:       len(active) > 0,
		Severity: SeverityWarn,
		Message:  "At least one engine should be ACTIVE before going live",
		Detail:   map[string]any{"active": active, "engines": len(records)},
	}
}

func missing(id, message string) Item {
	return Item{ID: id, Severity: SeverityBlocker, Message: message}
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
