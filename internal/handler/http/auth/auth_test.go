package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func validConfig() Config {
	return Config{
		AdminUser:     "ops@example.com",
		AdminPassword: "correct-horse-battery",
		JWTSecret:     strings.Repeat("s", 32),
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing user", func(c *Config) { c.AdminUser = "" }, "admin user is required"},
		{"missing password", func(c *Config) { c.AdminPassword = "" }, "admin password is required"},
		{"short password", func(c *Config) { c.AdminPassword = "short" }, "at least 12 characters"},
		{"weak password", func(c *Config) { c.AdminPassword = "Password12345" }, "too weak"},
		{"short secret", func(c *Config) { c.JWTSecret = "tooshort" }, "at least 32 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestProviderValidateCredentials(t *testing.T) {
	provider, err := NewProvider(validConfig())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	if err := provider.ValidateCredentials("ops@example.com", "correct-horse-battery"); err != nil {
		t.Errorf("valid credentials rejected: %v", err)
	}
	if err := provider.ValidateCredentials("ops@example.com", "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
	if err := provider.ValidateCredentials("intruder", "correct-horse-battery"); err == nil {
		t.Error("wrong username accepted")
	}
	if err := provider.ValidateCredentials("", ""); err == nil {
		t.Error("empty credentials accepted")
	}
}

func TestTokenHandler_IssuesAdminToken(t *testing.T) {
	provider, err := NewProvider(validConfig())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/token",
		strings.NewReader(`{"username":"ops@example.com","password":"correct-horse-battery"}`))
	TokenHandler(provider)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("empty token")
	}
	if resp.ExpiresAt <= time.Now().Unix() {
		t.Errorf("expires_at = %d, not in the future", resp.ExpiresAt)
	}

	sub, role, err := validateJWT("Bearer "+resp.Token, provider.Secret())
	if err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}
	if sub != "ops@example.com" || role != RoleAdmin {
		t.Errorf("sub = %q, role = %q", sub, role)
	}
}

func TestTokenHandler_RejectsBadCredentials(t *testing.T) {
	provider, err := NewProvider(validConfig())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/token",
		strings.NewReader(`{"username":"ops@example.com","password":"nope"}`))
	TokenHandler(provider)(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("code = %d, want 401", rec.Code)
	}
}

func TestTokenHandler_RejectsMalformedBody(t *testing.T) {
	provider, err := NewProvider(validConfig())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader("{"))
	TokenHandler(provider)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400", rec.Code)
	}
}

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestRequireAdmin(t *testing.T) {
	secret := []byte(strings.Repeat("s", 32))
	handler := RequireAdmin(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) != "ops@example.com" {
			t.Error("user missing from context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{
			"valid admin token",
			"Bearer " + signToken(t, secret, jwt.MapClaims{
				"sub": "ops@example.com", "role": "admin",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			http.StatusOK,
		},
		{"missing header", "", http.StatusUnauthorized},
		{"not a bearer token", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{
			"expired token",
			"Bearer " + signToken(t, secret, jwt.MapClaims{
				"sub": "ops@example.com", "role": "admin",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
			http.StatusUnauthorized,
		},
		{
			"wrong role",
			"Bearer " + signToken(t, secret, jwt.MapClaims{
				"sub": "ops@example.com", "role": "viewer",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			http.StatusForbidden,
		},
		{
			"wrong secret",
			"Bearer " + signToken(t, []byte(strings.Repeat("x", 32)), jwt.MapClaims{
				"sub": "ops@example.com", "role": "admin",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/admin/breakers", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}
