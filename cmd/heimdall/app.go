package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"valhalla-hq/heimdall/pkg/audit"
	"valhalla-hq/heimdall/pkg/audit/recorder"
	auditstorage "valhalla-hq/heimdall/pkg/audit/storage"
	"valhalla-hq/heimdall/pkg/cli"
	"valhalla-hq/heimdall/pkg/config"
	"valhalla-hq/heimdall/pkg/governance"
	"valhalla-hq/heimdall/pkg/runbook"
	"valhalla-hq/heimdall/pkg/storage"
	"valhalla-hq/heimdall/pkg/telemetry/logging"
	"valhalla-hq/heimdall/pkg/tripwire"
)

// app is the wiring shared by the offline commands. They act on the state
// and audit databases directly, the same way the server does.
type app struct {
	cfg        *config.Config
	logger     *logging.Logger
	store      *storage.SQLiteStore
	auditStore audit.Storage
	recorder   *recorder.Recorder
	svc        *governance.Service
	tripwire   *tripwire.Tripwire
}

// openApp loads the configuration and opens every store. Logs go to stderr
// at warn level, or debug with --verbose, so stdout stays machine readable.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logCfg := logging.FromConfig(cfg.Telemetry.Logging)
	logCfg.Writer = os.Stderr
	logCfg.Level = "warn"
	if verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.Setup(logCfg)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}

	store, err := openStateStore(cfg)
	if err != nil {
		return nil, err
	}

	auditStore, err := openAuditStorage(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	rec := recorder.NewRecorder(auditStore, recorderConfig(cfg))

	svc := governance.New(store, store, governance.Options{
		Recorder:      rec,
		RecordAllowed: cfg.Audit.Recorder.RecordAllowed,
	})
	tw := tripwire.New(store, svc.Levers(), policiesFromConfig(cfg.Tripwire.Policies)).
		WithObserver(svc.ObserveEvaluation)

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		auditStore: auditStore,
		recorder:   rec,
		svc:        svc,
		tripwire:   tw,
	}, nil
}

// runbook builds the readiness runbook over the app's stores.
func (a *app) runbook() *runbook.Builder {
	return runbook.New(runbook.Sources{
		Config:    a.cfg,
		Gate:      a.svc.GateState,
		Engines:   a.svc.Engines,
		AuditPing: auditPing(a.auditStore),
		Policies:  a.tripwire.Policies,
	})
}

// Close flushes the recorder and closes the stores.
func (a *app) Close() error {
	a.recorder.Close()

	var firstErr error
	if err := a.auditStore.Close(); err != nil {
		firstErr = err
	}
	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func openStateStore(cfg *config.Config) (*storage.SQLiteStore, error) {
	store, err := storage.OpenWithConfig(storage.Config{
		Path:               cfg.Storage.Path,
		BusyTimeout:        cfg.Storage.BusyTimeout,
		CheckpointInterval: cfg.Storage.CheckpointInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return store, nil
}

func openAuditStorage(cfg *config.Config) (audit.Storage, error) {
	switch cfg.Audit.Backend {
	case "sqlite":
		s, err := auditstorage.NewSQLiteStorage(&auditstorage.SQLiteConfig{
			Path:         cfg.Audit.SQLite.Path,
			MaxOpenConns: cfg.Audit.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.Audit.SQLite.MaxIdleConns,
			WALMode:      cfg.Audit.SQLite.WALMode,
			BusyTimeout:  cfg.Audit.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite audit storage: %w", err)
		}
		return s, nil
	case "memory":
		slog.Warn("audit backend is memory, records are lost on exit")
		return auditstorage.NewMemoryStorage(), nil
	default:
		return nil, cli.NewConfigError("audit.backend", fmt.Sprintf("unsupported audit backend: %s", cfg.Audit.Backend))
	}
}

func recorderConfig(cfg *config.Config) *recorder.Config {
	return &recorder.Config{
		Enabled:      cfg.Audit.Enabled,
		AsyncBuffer:  cfg.Audit.Recorder.AsyncBuffer,
		WriteTimeout: cfg.Audit.Recorder.WriteTimeout,
	}
}

func auditPing(s audit.Storage) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.Count(ctx, &audit.Query{})
		return err
	}
}

// policiesFromConfig converts configured tripwire policies.
func policiesFromConfig(in []config.TripwirePolicy) []tripwire.Policy {
	out := make([]tripwire.Policy, 0, len(in))
	for _, p := range in {
		out = append(out, tripwire.Policy{
			Domain:          p.Domain,
			Metric:          p.Metric,
			WindowEvents:    p.WindowEvents,
			BaselineEvents:  p.BaselineEvents,
			MinEvents:       p.MinEvents,
			MaxDropFraction: p.MaxDropFraction,
			Action:          tripwire.Action(p.Action),
			Engine:          p.Engine,
			Enabled:         p.Enabled,
		})
	}
	return out
}
