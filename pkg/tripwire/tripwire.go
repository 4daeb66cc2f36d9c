package tripwire

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notes recorded on evaluations that did not trigger.
const (
	NotePolicyMissing     = "policy_missing_or_disabled"
	NoteCannotComputeRate = "cannot_compute_rate"
)

// DefaultActor is used when an evaluation has no operator, e.g. a scheduled
// sweep.
const DefaultActor = "system"

// Tripwire evaluates KPI regressions against configured policies.
type Tripwire struct {
	store    Store
	levers   Levers
	clock    func() time.Time
	logger   *slog.Logger
	observer func(*Evaluation)
	mu       sync.RWMutex
	policies map[string]Policy
}

// New creates a Tripwire. Policies are keyed by normalized (domain, metric).
func New(store Store, levers Levers, policies []Policy) *Tripwire {
	t := &Tripwire{
		store:  store,
		levers: levers,
		clock:  time.Now,
		logger: slog.Default().With("component", "tripwire"),
	}
	t.SetPolicies(policies)
	return t
}

// WithClock overrides the clock used for timestamps.
func (t *Tripwire) WithClock(clock func() time.Time) *Tripwire {
	t.clock = clock
	return t
}

// WithObserver installs fn to be called with every persisted evaluation.
func (t *Tripwire) WithObserver(fn func(*Evaluation)) *Tripwire {
	t.observer = fn
	return t
}

// SetPolicies replaces the policy set, e.g. after a configuration reload.
func (t *Tripwire) SetPolicies(policies []Policy) {
	m := make(map[string]Policy, len(policies))
	for _, p := range policies {
		p.Domain = NormalizeDomain(p.Domain)
		p.Metric = NormalizeMetric(p.Metric)
		m[policyKey(p.Domain, p.Metric)] = p
	}

	t.mu.Lock()
	t.policies = m
	t.mu.Unlock()
}

// Policies returns the configured policies ordered by domain, then metric.
func (t *Tripwire) Policies() []Policy {
	t.mu.RLock()
	out := make([]Policy, 0, len(t.policies))
	for _, p := range t.policies {
		out = append(out, p)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}
		return out[i].Metric < out[j].Metric
	})
	return out
}

// Record stores a KPI event, filling ID and CreatedAt when unset.
func (t *Tripwire) Record(ctx context.Context, e *Event) error {
	e.Normalize()
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid kpi event: %w", err)
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t.clock().UTC()
	}
	return t.store.AppendEvent(ctx, e)
}

// Evaluate checks (domain, metric) against its policy. When the relative drop
// from the baseline rate to the current rate reaches MaxDropFraction, the
// policy's action is applied with actor as the operator. The evaluation is
// persisted in every case.
func (t *Tripwire) Evaluate(ctx context.Context, domain, metric, actor string) (*Evaluation, error) {
	domain = NormalizeDomain(domain)
	metric = NormalizeMetric(metric)
	if actor == "" {
		actor = DefaultActor
	}

	now := t.clock().UTC()
	ev, err := t.store.GetEvaluation(ctx, domain, metric)
	if err != nil {
		return nil, fmt.Errorf("failed to load evaluation: %w", err)
	}
	if ev == nil {
		ev = &Evaluation{Domain: domain, Metric: metric}
	}
	ev.LastCheckedAt = now

	t.mu.RLock()
	pol, ok := t.policies[policyKey(domain, metric)]
	t.mu.RUnlock()

	if !ok || !pol.Enabled {
		ev.Triggered = false
		ev.Note = NotePolicyMissing
		return ev, t.save(ctx, ev)
	}

	recent, err := t.store.RecentEvents(ctx, domain, metric, 0, pol.WindowEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent events: %w", err)
	}
	baseline, err := t.store.RecentEvents(ctx, domain, metric, pol.WindowEvents, pol.BaselineEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline events: %w", err)
	}

	if len(recent) < pol.MinEvents || len(baseline) < pol.MinEvents {
		ev.Triggered = false
		ev.Note = fmt.Sprintf("insufficient_events(recent=%d, baseline=%d)", len(recent), len(baseline))
		return ev, t.save(ctx, ev)
	}

	current := Rate(recent)
	base := Rate(baseline)
	ev.Current = current
	ev.Baseline = base

	if current == nil || base == nil || *base <= 0 {
		ev.Triggered = false
		ev.Note = NoteCannotComputeRate
		return ev, t.save(ctx, ev)
	}

	drop := (*base - *current) / *base
	ev.DropFraction = &drop
	ev.Triggered = drop >= pol.MaxDropFraction

	if !ev.Triggered {
		ev.Note = fmt.Sprintf("OK drop=%.3f", drop)
		return ev, t.save(ctx, ev)
	}

	ev.Action = pol.Action
	ev.LastTriggeredAt = &now
	ev.Note = fmt.Sprintf("TRIGGERED drop=%.3f action=%s", drop, pol.Action)

	t.logger.Warn("regression tripwire triggered",
		"domain", domain,
		"metric", metric,
		"baseline", *base,
		"current", *current,
		"drop", drop,
		"action", pol.Action,
	)

	if err := t.save(ctx, ev); err != nil {
		return nil, err
	}
	if err := t.pull(ctx, pol, drop, actor); err != nil {
		return ev, err
	}
	return ev, nil
}

// EvaluateAll evaluates every enabled policy. Errors are logged and the
// sweep continues; the triggered evaluations are returned.
func (t *Tripwire) EvaluateAll(ctx context.Context, actor string) []*Evaluation {
	var triggered []*Evaluation
	for _, p := range t.Policies() {
		if !p.Enabled {
			continue
		}
		ev, err := t.Evaluate(ctx, p.Domain, p.Metric, actor)
		if err != nil {
			t.logger.Error("tripwire evaluation failed",
				"domain", p.Domain,
				"metric", p.Metric,
				"error", err,
			)
			continue
		}
		if ev.Triggered {
			triggered = append(triggered, ev)
		}
	}
	return triggered
}

func (t *Tripwire) pull(ctx context.Context, pol Policy, drop float64, actor string) error {
	reason := fmt.Sprintf("Regression tripwire: %s.%s drop=%.3f", pol.Domain, pol.Metric, drop)

	switch pol.Action {
	case ActionKillSwitch:
		if err := t.levers.EngageKillSwitch(ctx, actor, reason); err != nil {
			return fmt.Errorf("failed to engage kill switch: %w", err)
		}
	case ActionStepDown:
		if err := t.levers.StepDown(ctx, pol.Engine, actor, reason); err != nil {
			return fmt.Errorf("failed to step down engine %q: %w", pol.Engine, err)
		}
	default:
		return fmt.Errorf("unknown tripwire action %q", pol.Action)
	}
	return nil
}

func (t *Tripwire) save(ctx context.Context, ev *Evaluation) error {
	if err := t.store.SaveEvaluation(ctx, ev); err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}
	if t.observer != nil {
		t.observer(ev)
	}
	return nil
}

// Rate is the success ratio of events with a binary outcome, or the mean
// value when none have one. It returns nil when neither can be computed.
func Rate(events []*Event) *float64 {
	var total, succeeded int
	for _, e := range events {
		if e.Success == nil {
			continue
		}
		total++
		if *e.Success {
			succeeded++
		}
	}
	if total > 0 {
		r := float64(succeeded) / float64(total)
		return &r
	}

	var n int
	var sum float64
	for _, e := range events {
		if e.Value == nil {
			continue
		}
		n++
		sum += *e.Value
	}
	if n > 0 {
		r := sum / float64(n)
		return &r
	}

	return nil
}

func policyKey(domain, metric string) string {
	return domain + "." + metric
}
