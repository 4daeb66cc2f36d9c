package tripwire

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs EvaluateAll on a cron schedule.
type Scheduler struct {
	tripwire *Tripwire
	schedule string
	actor    string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewScheduler creates a scheduler that sweeps tw on schedule (standard
// five-field cron syntax, e.g. "*/5 * * * *"). An empty schedule disables it.
func NewScheduler(tw *Tripwire, schedule string) *Scheduler {
	return &Scheduler{
		tripwire: tw,
		schedule: schedule,
		actor:    DefaultActor,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "tripwire.scheduler"),
	}
}

// WithActor sets the changed_by recorded when a sweep pulls a lever.
func (s *Scheduler) WithActor(actor string) *Scheduler {
	if actor != "" {
		s.actor = actor
	}
	return s
}

// Start schedules the sweep. It stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("tripwire schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.sweep(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule tripwire sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("tripwire scheduler started",
		"schedule", s.schedule,
		"policies", len(s.tripwire.Policies()),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) sweep(ctx context.Context) {
	triggered := s.tripwire.EvaluateAll(ctx, s.actor)
	if len(triggered) > 0 {
		s.logger.Warn("tripwire sweep completed", "triggered", len(triggered))
		return
	}
	s.logger.Debug("tripwire sweep completed, nothing triggered")
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("tripwire scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled sweep, or nil when nothing is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
