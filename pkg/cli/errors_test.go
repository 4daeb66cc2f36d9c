package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("gate.prod_exec_prefixes", "prefix must start with /")

	expected := "config error in gate.prod_exec_prefixes: prefix must start with /"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestCommandError(t *testing.T) {
	underlying := errors.New("database is locked")
	err := NewCommandError("engine transition", underlying)

	if got, want := err.Error(), "command engine transition failed: database is locked"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should see the wrapped error")
	}
}

func TestExitCode(t *testing.T) {
	blocked := errors.New("ENGINE_NOT_ACTIVE")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain error", errors.New("boom"), ExitFailure},
		{"exit error", Exit(ExitBlocked, blocked), ExitBlocked},
		{"wrapped exit error", fmt.Errorf("guard check: %w", Exit(ExitTampered, nil)), ExitTampered},
		{"config error", NewConfigError("output", "bad"), ExitConfig},
		{"command wrapping config error", NewCommandError("validate", NewConfigError("x", "y")), ExitConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitError_Message(t *testing.T) {
	if got := Exit(2, nil).Error(); got != "exit status 2" {
		t.Errorf("Error() = %q", got)
	}
	inner := errors.New("runbook not OK")
	e := Exit(2, inner)
	if e.Error() != "runbook not OK" || !errors.Is(e, inner) {
		t.Errorf("Error() = %q", e.Error())
	}
}
