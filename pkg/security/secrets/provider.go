package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no provider knows a secret.
	ErrNotFound = errors.New("secret not found")

	// ErrInvalidName is returned for names that cannot be looked up safely.
	ErrInvalidName = errors.New("invalid secret name")
)

// Provider looks up secret values by name.
type Provider interface {
	// Name identifies the provider in logs, e.g. "env" or "file".
	Name() string

	// Lookup returns the secret value. It returns ErrNotFound when the
	// provider does not hold the secret.
	Lookup(ctx context.Context, name string) (string, error)
}

// validateName rejects empty names and names that could escape a secrets
// directory.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %s", ErrInvalidName, redact(name))
	}
	return nil
}

// redact keeps the first three characters of a secret name.
func redact(name string) string {
	if len(name) <= 3 {
		return "***"
	}
	return name[:3] + "***"
}
