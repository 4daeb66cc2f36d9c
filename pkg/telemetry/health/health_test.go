package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestNew_DefaultTimeout(t *testing.T) {
	if c := New(0); c.checkTimeout != 5*time.Second {
		t.Errorf("checkTimeout = %v", c.checkTimeout)
	}
	if c := New(time.Second); c.checkTimeout != time.Second {
		t.Errorf("checkTimeout = %v", c.checkTimeout)
	}
}

func TestRegisterAndList(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("state_store", func(context.Context) error { return nil })
	c.RegisterCheck("audit_store", func(context.Context) error { return nil })
	c.RegisterCheck("state_store", func(context.Context) error { return errors.New("replaced") })

	if got := c.ListChecks(); !reflect.DeepEqual(got, []string{"audit_store", "state_store"}) {
		t.Errorf("ListChecks() = %v", got)
	}

	status := c.CheckReadiness(context.Background())
	if status.Checks["state_store"].Message != "replaced" {
		t.Error("RegisterCheck did not replace the existing check")
	}

	c.UnregisterCheck("state_store")
	if got := c.ListChecks(); len(got) != 1 {
		t.Errorf("ListChecks() after unregister = %v", got)
	}
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
		wantFailed []string
	}{
		{
			name:       "no checks",
			checks:     nil,
			wantStatus: StatusReady,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"state_store": func(context.Context) error { return nil },
				"audit_store": func(context.Context) error { return nil },
			},
			wantStatus: StatusReady,
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"state_store": func(context.Context) error { return nil },
				"audit_store": func(context.Context) error { return errors.New("database is locked") },
			},
			wantStatus: StatusDegraded,
			wantFailed: []string{"audit_store"},
		},
		{
			name: "timeout",
			checks: map[string]CheckFunc{
				"slow": func(ctx context.Context) error {
					<-ctx.Done()
					time.Sleep(10 * time.Millisecond)
					return nil
				},
			},
			wantStatus: StatusDegraded,
			wantFailed: []string{"slow"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(50 * time.Millisecond)
			for name, fn := range tt.checks {
				c.RegisterCheck(name, fn)
			}

			status := c.CheckReadiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", status.Status, tt.wantStatus)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("expected %d results, got %d", len(tt.checks), len(status.Checks))
			}
			for _, name := range tt.wantFailed {
				if status.Checks[name].Status != StatusUnhealthy {
					t.Errorf("%s status = %q", name, status.Checks[name].Status)
				}
			}
		})
	}
}

func TestCheckReadiness_TimeoutMessage(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.RegisterCheck("stuck", func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	status := c.CheckReadiness(context.Background())
	if status.Checks["stuck"].Message != ErrCheckTimeout.Error() {
		t.Errorf("Message = %q", status.Checks["stuck"].Message)
	}
}

func TestHandlers(t *testing.T) {
	c := New(time.Second)
	fixed := time.Date(2026, 10, 19, 10, 30, 0, 0, time.UTC)
	c.clock = func() time.Time { return fixed }

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		method   string
		setup    func()
		wantCode int
		wantBody string
	}{
		{
			name:     "liveness",
			handler:  c.LivenessHandler(),
			method:   http.MethodGet,
			wantCode: http.StatusOK,
			wantBody: StatusOK,
		},
		{
			name:     "liveness rejects POST",
			handler:  c.LivenessHandler(),
			method:   http.MethodPost,
			wantCode: http.StatusMethodNotAllowed,
		},
		{
			name:     "readiness ready",
			handler:  c.ReadinessHandler(),
			method:   http.MethodGet,
			wantCode: http.StatusOK,
			wantBody: StatusReady,
		},
		{
			name:    "readiness degraded",
			handler: c.ReadinessHandler(),
			method:  http.MethodGet,
			setup: func() {
				c.RegisterCheck("audit_store", func(context.Context) error { return errors.New("closed") })
			},
			wantCode: http.StatusServiceUnavailable,
			wantBody: StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(tt.method, "/", nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody == "" {
				return
			}
			var status HealthStatus
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatal(err)
			}
			if status.Status != tt.wantBody {
				t.Errorf("status = %q, want %q", status.Status, tt.wantBody)
			}
			if !status.Timestamp.Equal(fixed) {
				t.Errorf("timestamp = %v", status.Timestamp)
			}
		})
	}
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.2.0", "abc123", "2026-10-01").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Version != "1.2.0" || info.Commit != "abc123" || info.GoVersion == "" {
		t.Errorf("unexpected info: %+v", info)
	}

	head := httptest.NewRecorder()
	VersionHandler("1.2.0", "", "").ServeHTTP(head, httptest.NewRequest(http.MethodHead, "/version", nil))
	if head.Body.Len() != 0 {
		t.Error("HEAD should not write a body")
	}
}
