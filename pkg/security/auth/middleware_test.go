package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"valhalla-hq/heimdall/pkg/config"
	"valhalla-hq/heimdall/pkg/telemetry/logging"
)

func TestAPIKeyMiddleware_Handle(t *testing.T) {
	validator := NewAPIKeyValidator([]*APIKeyInfo{
		{Key: "hk-valid", UserID: "ops", Enabled: true},
		{Key: "hk-disabled", UserID: "old", Enabled: false},
	})
	sources := SourcesFromConfig(config.AuthenticationConfig{
		Sources: []config.APIKeySource{
			{Type: "header", Name: "Authorization", Scheme: "Bearer"},
			{Type: "header", Name: "X-API-Key"},
		},
	})

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantUser   string
	}{
		{
			name:       "bearer token",
			headers:    map[string]string{"Authorization": "Bearer hk-valid"},
			wantStatus: http.StatusOK,
			wantUser:   "ops",
		},
		{
			name:       "x-api-key header",
			headers:    map[string]string{"X-API-Key": "hk-valid"},
			wantStatus: http.StatusOK,
			wantUser:   "ops",
		},
		{
			name:       "wrong scheme falls through to next source",
			headers:    map[string]string{"Authorization": "Basic abc", "X-API-Key": "hk-valid"},
			wantStatus: http.StatusOK,
			wantUser:   "ops",
		},
		{
			name:       "missing key",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown key",
			headers:    map[string]string{"X-API-Key": "hk-unknown"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "disabled key",
			headers:    map[string]string{"Authorization": "Bearer hk-disabled"},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser, gotActor string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = UserID(r.Context())
				gotActor = logging.GetActor(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/admin/go-live", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			NewAPIKeyMiddleware(validator, sources).Handle(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				var body struct {
					Error struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if body.Error.Code != "UNAUTHORIZED" {
					t.Errorf("code = %q", body.Error.Code)
				}
				return
			}
			if gotUser != tt.wantUser || gotActor != tt.wantUser {
				t.Errorf("user = %q, actor = %q, want %q", gotUser, gotActor, tt.wantUser)
			}
		})
	}
}

func TestAPIKeyMiddleware_QuerySource(t *testing.T) {
	validator := NewAPIKeyValidator([]*APIKeyInfo{{Key: "q-key", UserID: "cli", Enabled: true}})
	mw := NewAPIKeyMiddleware(validator, []APIKeySource{{Type: "query", Name: "api_key"}})

	rec := httptest.NewRecorder()
	mw.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserID(r.Context()) != "cli" {
			t.Errorf("UserID = %q", UserID(r.Context()))
		}
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/runbook?api_key=q-key", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
