package tripwire

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Action is what a triggered tripwire does.
type Action string

const (
	// ActionKillSwitch engages the global kill switch.
	ActionKillSwitch Action = "KILL_SWITCH"

	// ActionStepDown moves the policy's engine from ACTIVE back to SANDBOX.
	ActionStepDown Action = "STEP_DOWN"
)

// Event is one KPI observation. Binary outcomes set Success; numeric
// observations set Value.
type Event struct {
	ID            string    `json:"id"`
	Domain        string    `json:"domain"`
	Metric        string    `json:"metric"`
	Success       *bool     `json:"success,omitempty"`
	Value         *float64  `json:"value,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Normalize upper-cases the domain and lower-cases the metric.
func (e *Event) Normalize() {
	e.Domain = NormalizeDomain(e.Domain)
	e.Metric = NormalizeMetric(e.Metric)
}

// Validate checks that the event can be stored.
func (e *Event) Validate() error {
	if e.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	if e.Metric == "" {
		return fmt.Errorf("metric is required")
	}
	if e.Success == nil && e.Value == nil {
		return fmt.Errorf("one of success or value is required")
	}
	return nil
}

// Policy is the regression threshold for one (domain, metric) pair.
type Policy struct {
	Domain string `yaml:"domain" json:"domain"`
	Metric string `yaml:"metric" json:"metric"`

	// WindowEvents is how many of the most recent events form the current rate.
	WindowEvents int `yaml:"window_events" json:"window_events"`

	// BaselineEvents is how many events after the window form the baseline.
	BaselineEvents int `yaml:"baseline_events" json:"baseline_events"`

	// MinEvents is the minimum size of both samples before the policy acts.
	MinEvents int `yaml:"min_events" json:"min_events"`

	// MaxDropFraction is the relative drop that triggers the policy.
	MaxDropFraction float64 `yaml:"max_drop_fraction" json:"max_drop_fraction"`

	Action Action `yaml:"action" json:"action"`

	// Engine is the engine stepped down by ActionStepDown.
	Engine string `yaml:"engine" json:"engine,omitempty"`

	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Evaluation is the persisted result of the last check of a policy.
type Evaluation struct {
	Domain          string     `json:"domain"`
	Metric          string     `json:"metric"`
	Triggered       bool       `json:"triggered"`
	Baseline        *float64   `json:"baseline,omitempty"`
	Current         *float64   `json:"current,omitempty"`
	DropFraction    *float64   `json:"drop_fraction,omitempty"`
	Action          Action     `json:"action,omitempty"`
	Note            string     `json:"note"`
	LastCheckedAt   time.Time  `json:"last_checked_at"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
}

// Store persists KPI events and evaluations. Implementations must be safe
// for concurrent use.
type Store interface {
	// AppendEvent stores e.
	AppendEvent(ctx context.Context, e *Event) error

	// RecentEvents returns events for (domain, metric), newest first,
	// skipping offset events and returning at most limit.
	RecentEvents(ctx context.Context, domain, metric string, offset, limit int) ([]*Event, error)

	// SaveEvaluation upserts the evaluation for its (domain, metric).
	SaveEvaluation(ctx context.Context, ev *Evaluation) error

	// GetEvaluation returns the last evaluation, or nil if none exists.
	GetEvaluation(ctx context.Context, domain, metric string) (*Evaluation, error)
}

// Levers are the safety controls a triggered policy pulls.
type Levers interface {
	EngageKillSwitch(ctx context.Context, changedBy, reason string) error
	StepDown(ctx context.Context, engineKey, changedBy, reason string) error
}

// NormalizeDomain upper-cases and trims a domain name.
func NormalizeDomain(domain string) string {
	return strings.ToUpper(strings.TrimSpace(domain))
}

// NormalizeMetric lower-cases and trims a metric name.
func NormalizeMetric(metric string) string {
	return strings.ToLower(strings.TrimSpace(metric))
}
