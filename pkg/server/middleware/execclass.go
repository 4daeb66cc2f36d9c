package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"valhalla-hq/heimdall/pkg/config"
	"valhalla-hq/heimdall/pkg/golive"
)

// ExecClass is the execution class of an HTTP route.
type ExecClass string

const (
	// ClassProdExec routes produce real-world effects in production.
	ClassProdExec ExecClass = "PROD_EXEC"

	// ClassSandboxExec routes run against sandbox targets.
	ClassSandboxExec ExecClass = "SANDBOX_EXEC"

	// ClassObserveOnly routes only read.
	ClassObserveOnly ExecClass = "OBSERVE_ONLY"
)

// CodeGateUnavailable is returned when the gate state cannot be read.
const CodeGateUnavailable = "GATE_UNAVAILABLE"

const (
	msgKillSwitch     = "Execution blocked by emergency stop."
	msgGoLiveDisabled = "Production execution is disabled. This endpoint is classified as PROD_EXEC."
	msgGateUnreadable = "Go-live state could not be read."
)

// GateReader returns the current go-live state.
type GateReader interface {
	GateState(ctx context.Context) (golive.State, error)
}

// BlockRecorder counts refused requests. *metrics.Collector implements it.
type BlockRecorder interface {
	RecordExecClassBlock(class, code string)
}

// ExecClassSettings is the enforcement configuration. It is swapped
// atomically on config reload.
type ExecClassSettings struct {
	// Enforce turns blocking on. It should only be true in production.
	Enforce  bool
	ProdExec []string
	Sandbox  []string
	Exempt   []string
}

// SettingsFromConfig derives the settings from cfg. Enforcement requires
// both gate.enforce and a production environment.
func SettingsFromConfig(cfg *config.Config) ExecClassSettings {
	return ExecClassSettings{
		Enforce:  cfg.Gate.Enforce && cfg.IsProduction(),
		ProdExec: append([]string(nil), cfg.Gate.ProdExecPrefixes...),
		Sandbox:  append([]string(nil), cfg.Gate.SandboxExecPrefixes...),
		Exempt:   append([]string(nil), cfg.Gate.ExemptPrefixes...),
	}
}

// Classify returns the class of path. The longest matching prefix wins;
// unmatched paths are OBSERVE_ONLY.
func (s ExecClassSettings) Classify(path string) ExecClass {
	class, best := ClassObserveOnly, -1
	for _, p := range s.ProdExec {
		if strings.HasPrefix(path, p) && len(p) > best {
			class, best = ClassProdExec, len(p)
		}
	}
	for _, p := range s.Sandbox {
		if strings.HasPrefix(path, p) && len(p) > best {
			class, best = ClassSandboxExec, len(p)
		}
	}
	return class
}

// IsExempt reports whether path always passes.
func (s ExecClassSettings) IsExempt(path string) bool {
	for _, p := range s.Exempt {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// ExecClassGate blocks requests according to the go-live state.
type ExecClassGate struct {
	gate     GateReader
	blocks   BlockRecorder
	settings atomic.Pointer[ExecClassSettings]
	logger   *slog.Logger
}

// NewExecClassGate creates the gate middleware. blocks may be nil.
func NewExecClassGate(gate GateReader, settings ExecClassSettings, blocks BlockRecorder) *ExecClassGate {
	g := &ExecClassGate{
		gate:   gate,
		blocks: blocks,
		logger: slog.Default().With("component", "server.execclass"),
	}
	g.Update(settings)
	return g
}

// Update replaces the settings for subsequent requests.
func (g *ExecClassGate) Update(settings ExecClassSettings) {
	g.settings.Store(&settings)
}

// Settings returns the active settings.
func (g *ExecClassGate) Settings() ExecClassSettings {
	return *g.settings.Load()
}

// Handle wraps next. The gate state is read on every non-exempt request.
// A read failure refuses the request.
func (g *ExecClassGate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := g.settings.Load()
		path := r.URL.Path
		if !s.Enforce || s.IsExempt(path) {
			next.ServeHTTP(w, r)
			return
		}

		class := s.Classify(path)
		state, err := g.gate.GateState(r.Context())
		if err != nil {
			g.logger.ErrorContext(r.Context(), "failed to read go-live state", "path", path, "error", err)
			g.refuse(w, r, class, CodeGateUnavailable, msgGateUnreadable)
			return
		}

		switch {
		case state.KillSwitchEngaged:
			g.refuse(w, r, class, golive.CodeKillSwitchEngaged, msgKillSwitch)
		case !state.GoLiveEnabled && class == ClassProdExec:
			g.refuse(w, r, class, golive.CodeGoLiveDisabled, msgGoLiveDisabled)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (g *ExecClassGate) refuse(w http.ResponseWriter, r *http.Request, class ExecClass, code, message string) {
	g.logger.WarnContext(r.Context(), "request blocked by go-live gate",
		"path", r.URL.Path,
		"exec_class", class,
		"code", code,
	)
	if g.blocks != nil {
		g.blocks.RecordExecClassBlock(string(class), code)
	}
	WriteError(w, http.StatusServiceUnavailable, ErrorDetail{
		Code:      code,
		Message:   message,
		ExecClass: string(class),
		Path:      r.URL.Path,
	})
}
