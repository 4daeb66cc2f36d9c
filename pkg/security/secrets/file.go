package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileProvider reads secrets from one file per secret in Dir. Trailing
// newlines are trimmed. Files readable by group or others are refused.
type FileProvider struct {
	Dir string
}

// NewFileProvider checks that dir is a directory and returns a provider
// over it.
func NewFileProvider(dir string) (*FileProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("secrets dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets dir %s is not a directory", dir)
	}
	return &FileProvider{Dir: dir}, nil
}

// Name implements Provider.
func (p *FileProvider) Name() string { return "file" }

// Lookup implements Provider.
func (p *FileProvider) Lookup(_ context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	path := filepath.Join(p.Dir, name)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("stat secret %s: %w", redact(name), err)
	}
	if info.IsDir() {
		return "", ErrNotFound
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return "", fmt.Errorf("secret %s has mode %04o, want 0600 or 0400", redact(name), perm)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", redact(name), err)
	}
	val := strings.TrimRight(string(data), "\r\n")
	if val == "" {
		return "", ErrNotFound
	}
	return val, nil
}
