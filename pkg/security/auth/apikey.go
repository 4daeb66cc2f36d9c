package auth

import (
	"crypto/subtle"
	"sync"

	"valhalla-hq/heimdall/pkg/config"
)

// APIKeyValidator validates API keys against a configured set of keys.
type APIKeyValidator struct {
	mu   sync.RWMutex
	keys []*APIKeyInfo
}

// NewAPIKeyValidator creates a validator over keys.
func NewAPIKeyValidator(keys []*APIKeyInfo) *APIKeyValidator {
	v := &APIKeyValidator{}
	v.Replace(keys)
	return v
}

// FromConfig builds a validator from the authentication section.
func FromConfig(cfg config.AuthenticationConfig) *APIKeyValidator {
	return NewAPIKeyValidator(keysFromConfig(cfg))
}

// Validate returns the key's info. Keys are compared in constant time.
func (v *APIKeyValidator) Validate(key string) (*APIKeyInfo, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var match *APIKeyInfo
	for _, info := range v.keys {
		if subtle.ConstantTimeCompare([]byte(info.Key), []byte(key)) == 1 {
			match = info
		}
	}
	if match == nil {
		return nil, ErrInvalidAPIKey
	}
	if !match.Enabled {
		return nil, ErrAPIKeyDisabled
	}
	return match, nil
}

// Replace swaps the key set, e.g. after a configuration reload.
func (v *APIKeyValidator) Replace(keys []*APIKeyInfo) {
	cp := make([]*APIKeyInfo, 0, len(keys))
	for _, k := range keys {
		if k == nil || k.Key == "" {
			continue
		}
		info := *k
		cp = append(cp, &info)
	}

	v.mu.Lock()
	v.keys = cp
	v.mu.Unlock()
}

// Len returns the number of configured keys.
func (v *APIKeyValidator) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keys)
}

// ReplaceFromConfig swaps the key set for the keys in cfg.
func (v *APIKeyValidator) ReplaceFromConfig(cfg config.AuthenticationConfig) {
	v.Replace(keysFromConfig(cfg))
}

func keysFromConfig(cfg config.AuthenticationConfig) []*APIKeyInfo {
	keys := make([]*APIKeyInfo, 0, len(cfg.Keys))
	for _, k := range cfg.Keys {
		keys = append(keys, &APIKeyInfo{Key: k.Key, UserID: k.UserID, Enabled: k.Enabled})
	}
	return keys
}
