package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"valhalla-hq/heimdall/pkg/audit/recorder"
	"valhalla-hq/heimdall/pkg/audit/retention"
	"valhalla-hq/heimdall/pkg/cli"
	"valhalla-hq/heimdall/pkg/config"
	"valhalla-hq/heimdall/pkg/governance"
	"valhalla-hq/heimdall/pkg/runbook"
	"valhalla-hq/heimdall/pkg/security/secrets"
	"valhalla-hq/heimdall/pkg/server"
	"valhalla-hq/heimdall/pkg/telemetry/health"
	"valhalla-hq/heimdall/pkg/telemetry/logging"
	"valhalla-hq/heimdall/pkg/telemetry/metrics"
	"valhalla-hq/heimdall/pkg/telemetry/tracing"
	"valhalla-hq/heimdall/pkg/tripwire"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	noWatch       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Heimdall admin server",
	Long: `Start the Heimdall admin server with the specified configuration.

The server exposes the gate, engine, guard, audit and tripwire APIs, runs the
audit retention and tripwire schedules, and reloads the configuration file
when it changes.

Examples:
  # Start with default config
  heimdall run

  # Start with custom config
  heimdall run --config /etc/heimdall/config.yaml

  # Override listen address
  heimdall run --listen 0.0.0.0:8480

  # Validate config without starting server
  heimdall run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "do not reload the config file on change")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := logging.Setup(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	printBanner(cmd, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()
	if tracer.Enabled() {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Tracing enabled (%s exporter)\n", cfg.Telemetry.Tracing.Exporter)
	}

	store, err := openStateStore(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer store.Close()
	fmt.Fprintf(cmd.OutOrStdout(), "✓ State database opened (%s)\n", cfg.Storage.Path)

	auditStore, err := openAuditStorage(cfg)
	if err != nil {
		return err
	}
	defer auditStore.Close()

	rec := recorder.NewRecorder(auditStore, recorderConfig(cfg))
	defer rec.Close()

	if cfg.Audit.Enabled && cfg.Audit.Retention.PruneSchedule != "" {
		pruner := retention.NewPruner(auditStore, &retention.Config{
			RetentionDays:       cfg.Audit.Retention.Days,
			PruneSchedule:       cfg.Audit.Retention.PruneSchedule,
			ArchiveBeforeDelete: cfg.Audit.Retention.ArchiveBeforeDelete,
			ArchivePath:         cfg.Audit.Retention.ArchivePath,
			MaxRecords:          cfg.Audit.Retention.MaxRecords,
		})
		if err := pruner.Start(ctx); err != nil {
			slog.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer pruner.Stop()
			if next := pruner.NextPruning(); next != nil {
				slog.Debug("audit retention scheduler started", "next_pruning", next)
			}
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Audit trail initialized (%s backend)\n", cfg.Audit.Backend)

	svc := governance.New(store, store, governance.Options{
		Recorder:      rec,
		Metrics:       collector,
		Tracer:        tracer,
		RecordAllowed: cfg.Audit.Recorder.RecordAllowed,
	})
	if err := svc.Sync(ctx); err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to read governance state: %w", err))
	}

	tw := tripwire.New(store, svc.Levers(), policiesFromConfig(cfg.Tripwire.Policies)).
		WithObserver(svc.ObserveEvaluation)
	if cfg.Tripwire.Enabled {
		sched := tripwire.NewScheduler(tw, cfg.Tripwire.Schedule).WithActor(cfg.Tripwire.Actor)
		if err := sched.Start(ctx); err != nil {
			return cli.NewCommandError("run", err)
		}
		defer sched.Stop()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Tripwire scheduled (%s, %d policies)\n", cfg.Tripwire.Schedule, len(tw.Policies()))
	}

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("state_db", store.Ping)
	checker.RegisterCheck("audit_store", auditPing(auditStore))

	rb := runbook.New(runbook.Sources{
		Config:    cfg,
		Gate:      svc.GateState,
		Engines:   svc.Engines,
		AuditPing: auditPing(auditStore),
		Policies:  tw.Policies,
	})

	resolver, err := secrets.FromConfig(cfg.Security.Secrets)
	if err != nil {
		return cli.NewConfigError("security.secrets", err.Error())
	}
	if err := resolver.ResolveAPIKeys(ctx, &cfg.Security.Authentication); err != nil {
		return cli.NewConfigError("security.authentication.keys", err.Error())
	}

	srv := server.New(cfg, server.Deps{
		Governance:   svc,
		Tripwire:     tw,
		AuditStorage: auditStore,
		Runbook:      rb,
		Health:       checker,
		Metrics:      collector,
		Tracer:       tracer,
		Version:      Version,
		Commit:       GitCommit,
		BuildTime:    BuildDate,
	})

	config.OnReload(func(old, updated *config.Config) {
		if err := logger.SetLevel(updated.Telemetry.Logging.Level); err != nil {
			slog.Warn("invalid log level after reload", "error", err)
		}
		resolver.Invalidate()
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := resolver.ResolveAPIKeys(rctx, &updated.Security.Authentication)
		cancel()
		if err != nil {
			slog.Error("api key secrets not resolved after reload, keeping previous keys", "error", err)
			updated.Security.Authentication.Keys = old.Security.Authentication.Keys
		}
		srv.ApplyConfig(updated)
		rb.SetConfig(updated)
		tw.SetPolicies(policiesFromConfig(updated.Tripwire.Policies))
	})

	if !runFlags.noWatch {
		watcher, err := config.NewWatcher(cfgFile, 0)
		if err != nil {
			slog.Warn("config watcher unavailable, reload disabled", "error", err)
		} else {
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					slog.Warn("config watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
		}
	}

	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Health endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Health.LivenessPath)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Server stopped")
	return nil
}

func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Heimdall v%s\n", Version)
	fmt.Fprintf(out, "Loading configuration from: %s\n", cfgFile)
	fmt.Fprintf(out, "✓ Configuration loaded (environment: %s)\n", cfg.Environment)

	if cfg.IsProduction() && !cfg.Gate.Enforce {
		slog.Warn("production environment without execution-class enforcement")
	}
	if !cfg.Security.Authentication.Enabled {
		slog.Warn("admin routes are not authenticated")
	}
}
