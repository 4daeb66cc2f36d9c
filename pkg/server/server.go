package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"valhalla-hq/heimdall/pkg/audit"
	"valhalla-hq/heimdall/pkg/config"
	"valhalla-hq/heimdall/pkg/governance"
	"valhalla-hq/heimdall/pkg/runbook"
	"valhalla-hq/heimdall/pkg/security/auth"
	"valhalla-hq/heimdall/pkg/server/middleware"
	"valhalla-hq/heimdall/pkg/telemetry/health"
	"valhalla-hq/heimdall/pkg/telemetry/metrics"
	"valhalla-hq/heimdall/pkg/telemetry/tracing"
	"valhalla-hq/heimdall/pkg/tripwire"
)

// Deps are the components the API serves. Governance is required; a nil
// Tripwire, AuditStorage or Runbook disables the corresponding routes.
type Deps struct {
	Governance   *governance.Service
	Tripwire     *tripwire.Tripwire
	AuditStorage audit.Storage
	Runbook      *runbook.Builder
	Health       *health.Checker
	Metrics      *metrics.Collector
	Tracer       *tracing.Tracer

	// Auth validates admin API keys. When nil, one is built from config.
	Auth *auth.APIKeyValidator

	Version   string
	Commit    string
	BuildTime string
}

// Server is the Heimdall admin HTTP server.
type Server struct {
	deps         Deps
	httpServer   *http.Server
	handler      http.Handler
	execGate     *middleware.ExecClassGate
	authMW       atomic.Pointer[auth.APIKeyMiddleware]
	authEnabled  atomic.Bool
	cfg          atomic.Pointer[config.Config]
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	logger       *slog.Logger
}

// New creates a server for cfg. Routes and middleware are built once here.
func New(cfg *config.Config, deps Deps) *Server {
	if deps.Health == nil {
		deps.Health = health.New(cfg.Telemetry.Health.CheckTimeout)
	}
	if deps.Auth == nil {
		deps.Auth = auth.FromConfig(cfg.Security.Authentication)
	}

	s := &Server{
		deps:         deps,
		shutdownChan: make(chan struct{}),
		logger:       slog.Default().With("component", "server"),
	}
	s.cfg.Store(cfg)
	s.execGate = middleware.NewExecClassGate(deps.Governance, middleware.SettingsFromConfig(cfg), deps.Metrics)
	s.applyAuth(cfg)
	s.handler = s.setupRoutes(cfg)
	return s
}

// Start starts the HTTP server and blocks until ctx is cancelled, a
// termination signal arrives or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	cfg := s.config()
	s.httpServer = &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      s.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting admin server",
			"address", cfg.Server.ListenAddress,
			"environment", cfg.Environment,
			"gate_enforced", s.execGate.Settings().Enforce,
			"auth_enabled", s.authEnabled.Load(),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Stop asks a running Start to shut down.
func (s *Server) Stop() {
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// Shutdown gracefully shuts down the server within server.shutdown_timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		timeout := s.config().Server.ShutdownTimeout
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("admin server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ApplyConfig applies the reloadable parts of cfg.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.cfg.Store(cfg)
	s.execGate.Update(middleware.SettingsFromConfig(cfg))
	s.deps.Auth.ReplaceFromConfig(cfg.Security.Authentication)
	s.applyAuth(cfg)
	s.deps.Governance.SetRecordAllowed(cfg.Audit.Recorder.RecordAllowed)

	s.logger.Info("server configuration applied",
		"gate_enforced", s.execGate.Settings().Enforce,
		"auth_enabled", cfg.Security.Authentication.Enabled,
	)
}

func (s *Server) applyAuth(cfg *config.Config) {
	s.authMW.Store(auth.NewAPIKeyMiddleware(s.deps.Auth, auth.SourcesFromConfig(cfg.Security.Authentication)))
	s.authEnabled.Store(cfg.Security.Authentication.Enabled)
}

func (s *Server) config() *config.Config {
	return s.cfg.Load()
}

// admin requires an API key on h when authentication is enabled.
func (s *Server) admin(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authEnabled.Load() {
			h(w, r)
			return
		}
		s.authMW.Load().Handle(h).ServeHTTP(w, r)
	})
}
