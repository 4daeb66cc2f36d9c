package auth

import (
	"context"
	"errors"
)

// APIKeyInfo is one configured admin API key.
type APIKeyInfo struct {
	Key     string
	UserID  string
	Enabled bool
}

// Validator resolves a presented key to its owner.
type Validator interface {
	Validate(key string) (*APIKeyInfo, error)
}

var (
	// ErrInvalidAPIKey indicates an unknown key.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrAPIKeyDisabled indicates a configured but disabled key.
	ErrAPIKeyDisabled = errors.New("API key disabled")

	// ErrNoAPIKey indicates that no configured source carried a key.
	ErrNoAPIKey = errors.New("no API key found")
)

type contextKey string

// #nosec G101 - This is a context key constant, not a credential
const apiKeyInfoKey contextKey = "api_key_info"

// GetAPIKeyInfo retrieves the authenticated key from ctx.
func GetAPIKeyInfo(ctx context.Context) (*APIKeyInfo, bool) {
	info, ok := ctx.Value(apiKeyInfoKey).(*APIKeyInfo)
	return info, ok
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if info, ok := GetAPIKeyInfo(ctx); ok {
		return info.UserID
	}
	return ""
}
