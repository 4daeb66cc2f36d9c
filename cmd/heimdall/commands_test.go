package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"valhalla-hq/heimdall/pkg/cli"
	"valhalla-hq/heimdall/pkg/config"
	"valhalla-hq/heimdall/pkg/engine"
	"valhalla-hq/heimdall/pkg/golive"
	"valhalla-hq/heimdall/pkg/tripwire"
)

// execute runs the root command with args and returns what it wrote to
// stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return out.String(), err
}

// writeConfig writes a staging configuration whose databases live in a
// temporary directory and returns its path.
func writeConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	data := "environment: staging\n" +
		"storage:\n" +
		"  path: " + filepath.Join(dir, "state.db") + "\n" +
		"audit:\n" +
		"  backend: sqlite\n" +
		"  sqlite:\n" +
		"    path: " + filepath.Join(dir, "audit.db") + "\n"

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestCommandTree(t *testing.T) {
	paths := [][]string{
		{"run"},
		{"validate"},
		{"version"},
		{"golive", "status"},
		{"golive", "enable"},
		{"golive", "disable"},
		{"killswitch", "engage"},
		{"killswitch", "disengage"},
		{"engine", "list"},
		{"engine", "get"},
		{"engine", "next"},
		{"engine", "transition"},
		{"guard", "check"},
		{"guard", "actions"},
		{"audit", "query"},
		{"audit", "verify"},
		{"audit", "prune"},
		{"runbook"},
		{"tripwire", "policies"},
		{"keys", "generate"},
		{"completion"},
		{"tripwire", "record"},
		{"tripwire", "evaluate"},
	}

	for _, path := range paths {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			cmd, _, err := rootCmd.Find(path)
			if err != nil {
				t.Fatalf("Find(%v): %v", path, err)
			}
			if cmd.Name() != path[len(path)-1] {
				t.Errorf("found %q, want %q", cmd.Name(), path[len(path)-1])
			}
			if cmd.Short == "" {
				t.Error("Short should not be empty")
			}
		})
	}
}

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "2026-10-01T00:00:00Z/2026-10-02T00:00:00Z", false},
		{"same instant", "2026-10-01T00:00:00Z/2026-10-01T00:00:00Z", false},
		{"missing end", "2026-10-01T00:00:00Z", true},
		{"bad start", "yesterday/2026-10-02T00:00:00Z", true},
		{"bad end", "2026-10-01T00:00:00Z/tomorrow", true},
		{"reversed", "2026-10-02T00:00:00Z/2026-10-01T00:00:00Z", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := parseTimeRange(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTimeRange(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && end.Before(start) {
				t.Errorf("end %v before start %v", end, start)
			}
		})
	}
}

func TestBuildAuditQuery(t *testing.T) {
	orig := auditFlags
	defer func() { auditFlags = orig }()

	tests := []struct {
		name      string
		limit     int
		offset    int
		order     string
		wantLimit int
		wantOrder string
		wantErr   bool
	}{
		{name: "default limit", wantLimit: 100, wantOrder: "desc"},
		{name: "explicit limit", limit: 5, order: "asc", wantLimit: 5, wantOrder: "asc"},
		{name: "clamped", limit: 5000, order: "DESC", wantLimit: 1000, wantOrder: "desc"},
		{name: "negative limit", limit: -1, wantErr: true},
		{name: "negative offset", offset: -3, wantErr: true},
		{name: "bad order", order: "sideways", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditFlags = orig
			auditFlags.limit = tt.limit
			auditFlags.offset = tt.offset
			auditFlags.order = tt.order
			auditFlags.engine = " outreach "

			q, err := buildAuditQuery(100, 1000)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if q.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", q.Limit, tt.wantLimit)
			}
			if q.SortOrder != tt.wantOrder {
				t.Errorf("SortOrder = %q, want %q", q.SortOrder, tt.wantOrder)
			}
			if q.EngineKey != "outreach" {
				t.Errorf("EngineKey = %q, want trimmed", q.EngineKey)
			}
		})
	}
}

func TestPoliciesFromConfig(t *testing.T) {
	in := []config.TripwirePolicy{{
		Domain:          "OUTREACH",
		Metric:          "reply_rate",
		WindowEvents:    50,
		BaselineEvents:  200,
		MinEvents:       20,
		MaxDropFraction: 0.5,
		Action:          "STEP_DOWN",
		Engine:          "outreach",
		Enabled:         true,
	}}

	got := policiesFromConfig(in)
	if len(got) != 1 {
		t.Fatalf("got %d policies, want 1", len(got))
	}
	p := got[0]
	if p.Action != tripwire.ActionStepDown || p.Engine != "outreach" || !p.Enabled {
		t.Errorf("unexpected policy %+v", p)
	}
	if p.WindowEvents != 50 || p.BaselineEvents != 200 || p.MinEvents != 20 || p.MaxDropFraction != 0.5 {
		t.Errorf("thresholds not copied: %+v", p)
	}

	if got := policiesFromConfig(nil); len(got) != 0 {
		t.Errorf("nil input gave %d policies", len(got))
	}
}

func TestValidateCommand(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := execute(t, "validate", "-c", cfgPath)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") || !strings.Contains(out, "staging") {
		t.Errorf("unexpected output:\n%s", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("server:\n  listen_address: not-an-address\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err = execute(t, "validate", "-c", bad)
	if code := cli.ExitCode(err); code != cli.ExitConfig {
		t.Errorf("invalid config exit code = %d, want %d (err=%v)", code, cli.ExitConfig, err)
	}

	_, err = execute(t, "validate", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	if code := cli.ExitCode(err); code != cli.ExitConfig {
		t.Errorf("missing config exit code = %d, want %d (err=%v)", code, cli.ExitConfig, err)
	}
}

func TestGovernanceWorkflow(t *testing.T) {
	cfgPath := writeConfig(t)
	run := func(args ...string) (string, error) {
		t.Helper()
		return execute(t, append(args, "-c", cfgPath)...)
	}

	if _, err := run("engine", "transition", "outreach", "DORMANT", "--by", "alice", "-o", "text"); err != nil {
		t.Fatalf("transition to DORMANT: %v", err)
	}

	out, err := run("engine", "transition", "outreach", "SANDBOX", "--by", "alice", "--reason", "dry run", "-o", "json")
	if err != nil {
		t.Fatalf("transition to SANDBOX: %v", err)
	}
	var records []engine.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(records) != 1 || records[0].State != engine.StateSandbox || records[0].ChangedBy != "alice" {
		t.Fatalf("unexpected records %+v", records)
	}

	_, err = run("engine", "transition", "outreach", "DORMANT_ISH", "--by", "alice", "-o", "text")
	if err == nil {
		t.Error("expected an error for an unknown state")
	}

	out, err = run("guard", "check", "outreach", "OUTREACH", "--actor", "svc", "-o", "text")
	if code := cli.ExitCode(err); code != cli.ExitBlocked {
		t.Fatalf("guard in SANDBOX exit code = %d, want %d (err=%v)", code, cli.ExitBlocked, err)
	}
	if !strings.Contains(out, "ENGINE_NOT_ACTIVE") {
		t.Errorf("expected ENGINE_NOT_ACTIVE in output:\n%s", out)
	}

	if _, err := run("guard", "check", "outreach", "COMPUTE", "--actor", "svc", "-o", "text"); err != nil {
		t.Fatalf("side-effect-free action in SANDBOX: %v", err)
	}

	if _, err := run("engine", "transition", "outreach", "ACTIVE", "--by", "alice", "-o", "text"); err != nil {
		t.Fatalf("transition to ACTIVE: %v", err)
	}

	out, err = run("guard", "check", "outreach", "OUTREACH", "--actor", "svc", "-o", "text")
	if code := cli.ExitCode(err); code != cli.ExitBlocked {
		t.Fatalf("guard with go-live off exit code = %d, want %d (err=%v)", code, cli.ExitBlocked, err)
	}
	if !strings.Contains(out, golive.CodeGoLiveDisabled) {
		t.Errorf("expected %s in output:\n%s", golive.CodeGoLiveDisabled, out)
	}

	if _, err := run("guard", "check", "outreach", "COMPUTE", "--actor", "svc", "-o", "text"); err != nil {
		t.Fatalf("COMPUTE on ACTIVE engine: %v", err)
	}

	out, err = run("golive", "enable", "--by", "alice", "--reason", "runbook green", "-o", "json")
	if err != nil {
		t.Fatalf("golive enable: %v", err)
	}
	var st golive.State
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !st.GoLiveEnabled || st.KillSwitchEngaged {
		t.Fatalf("unexpected gate %+v", st)
	}

	if _, err := run("guard", "check", "outreach", "OUTREACH", "--actor", "svc", "-o", "text"); err != nil {
		t.Fatalf("guard with go-live on: %v", err)
	}

	if _, err := run("killswitch", "engage", "--by", "bob", "--reason", "bounce spike", "-o", "text"); err != nil {
		t.Fatalf("killswitch engage: %v", err)
	}
	out, err = run("guard", "check", "outreach", "OUTREACH", "--actor", "svc", "-o", "text")
	if code := cli.ExitCode(err); code != cli.ExitBlocked {
		t.Fatalf("guard with kill switch exit code = %d, want %d (err=%v)", code, cli.ExitBlocked, err)
	}
	if !strings.Contains(out, golive.CodeKillSwitchEngaged) {
		t.Errorf("expected %s in output:\n%s", golive.CodeKillSwitchEngaged, out)
	}

	out, err = run("golive", "status", "-o", "text")
	if err != nil {
		t.Fatalf("golive status: %v", err)
	}
	if !strings.Contains(out, "ENGAGED") || !strings.Contains(out, "bob") {
		t.Errorf("unexpected status:\n%s", out)
	}

	out, err = run("audit", "verify", "-o", "text")
	if err != nil {
		t.Fatalf("audit verify: %v", err)
	}
	if !strings.Contains(out, "Audit chain intact") {
		t.Errorf("unexpected verify output:\n%s", out)
	}

	out, err = run("audit", "query", "--kind", "engine_transitioned", "--order", "asc", "--limit", "0", "--offset", "0", "-o", "csv")
	if err != nil {
		t.Fatalf("audit query: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Errorf("expected header and 3 transitions, got %d lines:\n%s", len(lines), out)
	}
}

func TestRunbookBlocksWithKillSwitch(t *testing.T) {
	cfgPath := writeConfig(t)

	if _, err := execute(t, "killswitch", "engage", "--by", "carol", "-o", "text", "-c", cfgPath); err != nil {
		t.Fatalf("killswitch engage: %v", err)
	}

	out, err := execute(t, "runbook", "-o", "json", "-c", cfgPath)
	if code := cli.ExitCode(err); code != cli.ExitBlocked {
		t.Fatalf("runbook exit code = %d, want %d (err=%v)", code, cli.ExitBlocked, err)
	}

	var report struct {
		OK       bool `json:"ok_to_enable_go_live"`
		Blockers []struct {
			ID string `json:"id"`
		} `json:"blockers"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if report.OK {
		t.Error("runbook should not be OK with the kill switch engaged")
	}
	found := false
	for _, b := range report.Blockers {
		if b.ID == "kill_switch_clear" {
			found = true
		}
	}
	if !found {
		t.Errorf("kill_switch_clear blocker missing: %+v", report.Blockers)
	}
}

func TestTripwireRecordAndEvaluate(t *testing.T) {
	cfgPath := writeConfig(t)

	if _, err := execute(t, "tripwire", "record", "outreach", "Reply_Rate", "--success", "true", "-c", cfgPath); err != nil {
		t.Fatalf("tripwire record: %v", err)
	}
	if _, err := execute(t, "tripwire", "record", "outreach", "reply_rate", "--success", "maybe", "-c", cfgPath); err == nil {
		t.Error("expected an error for an invalid --success value")
	}

	out, err := execute(t, "tripwire", "evaluate", "OUTREACH", "reply_rate", "--all=false", "--actor", "ops", "-o", "json", "-c", cfgPath)
	if err != nil {
		t.Fatalf("tripwire evaluate: %v", err)
	}
	var evals []tripwire.Evaluation
	if err := json.Unmarshal([]byte(out), &evals); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(evals) != 1 || evals[0].Triggered {
		t.Fatalf("unexpected evaluations %+v", evals)
	}
	if evals[0].LastCheckedAt.IsZero() || evals[0].LastCheckedAt.After(time.Now().Add(time.Minute)) {
		t.Errorf("LastCheckedAt = %v", evals[0].LastCheckedAt)
	}

	if _, err := execute(t, "tripwire", "evaluate", "--all=false", "-c", cfgPath); err == nil {
		t.Error("expected an error without a policy or --all")
	}
}
