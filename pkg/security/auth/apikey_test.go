package auth

import (
	"errors"
	"testing"

	"valhalla-hq/heimdall/pkg/config"
)

func TestAPIKeyValidator_Validate(t *testing.T) {
	v := NewAPIKeyValidator([]*APIKeyInfo{
		{Key: "hk-ops-0001", UserID: "ops", Enabled: true},
		{Key: "hk-old-0002", UserID: "retired", Enabled: false},
		{Key: "", UserID: "blank", Enabled: true},
	})

	tests := []struct {
		name     string
		key      string
		wantUser string
		wantErr  error
	}{
		{name: "valid", key: "hk-ops-0001", wantUser: "ops"},
		{name: "disabled", key: "hk-old-0002", wantErr: ErrAPIKeyDisabled},
		{name: "unknown", key: "hk-nope", wantErr: ErrInvalidAPIKey},
		{name: "empty never matches", key: "", wantErr: ErrInvalidAPIKey},
		{name: "prefix does not match", key: "hk-ops", wantErr: ErrInvalidAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := v.Validate(tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && info.UserID != tt.wantUser {
				t.Errorf("UserID = %q, want %q", info.UserID, tt.wantUser)
			}
		})
	}
}

func TestAPIKeyValidator_ReplaceFromConfig(t *testing.T) {
	v := FromConfig(config.AuthenticationConfig{
		Keys: []config.APIKeyConfig{{Key: "first", UserID: "a", Enabled: true}},
	})
	if v.Len() != 1 {
		t.Fatalf("Len() = %d", v.Len())
	}

	v.ReplaceFromConfig(config.AuthenticationConfig{
		Keys: []config.APIKeyConfig{
			{Key: "second", UserID: "b", Enabled: true},
			{Key: "third", UserID: "c", Enabled: true},
		},
	})

	if _, err := v.Validate("first"); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("replaced key still valid: %v", err)
	}
	if info, err := v.Validate("third"); err != nil || info.UserID != "c" {
		t.Errorf("Validate(third) = %v, %v", info, err)
	}
	if v.Len() != 2 {
		t.Errorf("Len() = %d", v.Len())
	}
}

func TestAPIKeyValidator_ReplaceCopies(t *testing.T) {
	info := &APIKeyInfo{Key: "k", UserID: "ops", Enabled: true}
	v := NewAPIKeyValidator([]*APIKeyInfo{info})

	info.Enabled = false
	if _, err := v.Validate("k"); err != nil {
		t.Errorf("validator shares caller's struct: %v", err)
	}
}
