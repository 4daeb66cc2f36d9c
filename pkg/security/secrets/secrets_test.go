package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"valhalla-hq/heimdall/pkg/config"
)

type countingProvider struct {
	name   string
	values map[string]string
	calls  int
}

func (p *countingProvider) Name() string { return p.name }

func (p *countingProvider) Lookup(_ context.Context, name string) (string, error) {
	p.calls++
	if v, ok := p.values[name]; ok {
		return v, nil
	}
	return "", ErrNotFound
}

func TestEnvProvider_Lookup(t *testing.T) {
	p := NewEnvProvider("HEIMDALL_SECRET_")
	p.lookup = func(k string) (string, bool) {
		env := map[string]string{
			"HEIMDALL_SECRET_OPS_KEY":     "hk-ops",
			"HEIMDALL_SECRET_RELEASE_KEY": "hk-rel",
			"HEIMDALL_SECRET_EMPTY":       "",
		}
		v, ok := env[k]
		return v, ok
	}

	tests := []struct {
		name    string
		secret  string
		want    string
		wantErr error
	}{
		{name: "hyphenated", secret: "ops-key", want: "hk-ops"},
		{name: "dotted", secret: "release.key", want: "hk-rel"},
		{name: "missing", secret: "nope", wantErr: ErrNotFound},
		{name: "empty value", secret: "empty", wantErr: ErrNotFound},
		{name: "traversal", secret: "../etc", wantErr: ErrInvalidName},
		{name: "blank name", secret: "", wantErr: ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Lookup(context.Background(), tt.secret)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Lookup() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Lookup() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileProvider_Lookup(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string, mode os.FileMode) {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), mode); err != nil {
			t.Fatal(err)
		}
		if err := os.Chmod(path, mode); err != nil {
			t.Fatal(err)
		}
	}
	write("ops-key", "hk-ops\n", 0o600)
	write("readonly", "hk-ro", 0o400)
	write("loose", "hk-loose", 0o644)

	p, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}

	tests := []struct {
		name     string
		secret   string
		want     string
		wantErr  error
		anyError bool
	}{
		{name: "trims newline", secret: "ops-key", want: "hk-ops"},
		{name: "read only", secret: "readonly", want: "hk-ro"},
		{name: "world readable", secret: "loose", anyError: true},
		{name: "missing", secret: "nope", wantErr: ErrNotFound},
		{name: "traversal", secret: "../ops-key", wantErr: ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Lookup(context.Background(), tt.secret)
			switch {
			case tt.anyError:
				if err == nil || errors.Is(err, ErrNotFound) {
					t.Fatalf("Lookup() error = %v, want permission error", err)
				}
				return
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Lookup() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Lookup() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewFileProvider_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileProvider(path); err == nil {
		t.Fatal("NewFileProvider() on a file should fail")
	}
	if _, err := NewFileProvider(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("NewFileProvider() on a missing dir should fail")
	}
}

func TestResolver_ChainAndCache(t *testing.T) {
	first := &countingProvider{name: "first", values: map[string]string{"a": "from-first"}}
	second := &countingProvider{name: "second", values: map[string]string{"a": "shadowed", "b": "from-second"}}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewResolver(time.Minute, first, second)
	r.now = func() time.Time { return now }
	ctx := context.Background()

	if got, err := r.Resolve(ctx, "a"); err != nil || got != "from-first" {
		t.Fatalf("Resolve(a) = %q, %v", got, err)
	}
	if got, err := r.Resolve(ctx, "b"); err != nil || got != "from-second" {
		t.Fatalf("Resolve(b) = %q, %v", got, err)
	}
	if _, err := r.Resolve(ctx, "c"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve(c) error = %v, want ErrNotFound", err)
	}

	calls := first.calls
	if _, err := r.Resolve(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if first.calls != calls {
		t.Errorf("cached lookup hit provider: calls %d -> %d", calls, first.calls)
	}

	now = now.Add(2 * time.Minute)
	if _, err := r.Resolve(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if first.calls != calls+1 {
		t.Errorf("expired entry not refreshed: calls = %d, want %d", first.calls, calls+1)
	}

	r.Invalidate()
	if _, err := r.Resolve(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if first.calls != calls+2 {
		t.Errorf("Invalidate() kept entry: calls = %d, want %d", first.calls, calls+2)
	}
}

func TestResolver_ResolveAPIKeys(t *testing.T) {
	p := &countingProvider{name: "test", values: map[string]string{"ops-key": "hk-ops"}}
	r := NewResolver(0, p)

	auth := &config.AuthenticationConfig{
		Enabled: true,
		Keys: []config.APIKeyConfig{
			{Key: "hk-inline", UserID: "inline", Enabled: true},
			{KeySecret: "ops-key", UserID: "ops", Enabled: true},
			{KeySecret: "gone", UserID: "retired", Enabled: false},
		},
	}
	if err := r.ResolveAPIKeys(context.Background(), auth); err != nil {
		t.Fatalf("ResolveAPIKeys() error = %v", err)
	}

	want := []string{"hk-inline", "hk-ops", ""}
	for i, w := range want {
		if auth.Keys[i].Key != w {
			t.Errorf("keys[%d].Key = %q, want %q", i, auth.Keys[i].Key, w)
		}
	}

	auth.Keys = append(auth.Keys, config.APIKeyConfig{KeySecret: "missing", UserID: "alice", Enabled: true})
	err := r.ResolveAPIKeys(context.Background(), auth)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ResolveAPIKeys() error = %v, want ErrNotFound", err)
	}
}

func TestFromConfig(t *testing.T) {
	r, err := FromConfig(config.SecretsConfig{EnvPrefix: "HEIMDALL_SECRET_", CacheTTL: time.Minute})
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	if len(r.providers) != 1 || r.providers[0].Name() != "env" {
		t.Errorf("providers = %v, want env only", r.providers)
	}

	r, err = FromConfig(config.SecretsConfig{EnvPrefix: "X_", Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	if len(r.providers) != 2 || r.providers[1].Name() != "file" {
		t.Errorf("providers = %v, want env then file", r.providers)
	}

	if _, err := FromConfig(config.SecretsConfig{Dir: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("FromConfig() with missing dir should fail")
	}
}

func TestResolver_LiveEnvironment(t *testing.T) {
	t.Setenv("HEIMDALL_SECRET_LIVE_KEY", "hk-live")
	r := NewResolver(0, NewEnvProvider("HEIMDALL_SECRET_"))
	got, err := r.Resolve(context.Background(), "live-key")
	if err != nil || got != "hk-live" {
		t.Fatalf("Resolve() = %q, %v", got, err)
	}
}
