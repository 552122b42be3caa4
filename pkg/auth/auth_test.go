package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/documind/documind/pkg/config"
)

func newTestService(expiry time.Duration) *Service {
	cfg := &config.AuthConfig{
		JWTSecret:   "test-secret",
		TokenExpiry: config.Duration(expiry),
	}
	cfg.SetDefaults()
	return NewService(cfg)
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newTestService(time.Hour)

	token, err := svc.IssueToken(Claims{
		Username:    "alice",
		UserID:      7,
		Role:        "Teacher",
		Permissions: []string{"files.upload", "files.delete.own"},
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Username != "alice" || claims.UserID != 7 || claims.Role != "Teacher" {
		t.Errorf("Claims mismatch: %+v", claims)
	}
	if len(claims.Permissions) != 2 || claims.Permissions[0] != "files.upload" {
		t.Errorf("Permissions mismatch: %v", claims.Permissions)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := newTestService(time.Hour).IssueToken(Claims{Username: "alice", Role: "Admin"})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	other := &Service{secret: []byte("different-secret"), expiry: time.Hour}
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("Expected validation failure with wrong secret")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	svc := newTestService(-time.Minute)

	token, err := svc.IssueToken(Claims{Username: "alice", Role: "Admin"})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := svc.ValidateToken(token); err == nil {
		t.Error("Expected validation failure for expired token")
	}
}

func TestHTTPMiddleware(t *testing.T) {
	svc := newTestService(time.Hour)
	token, _ := svc.IssueToken(Claims{Username: "bob", Role: "Student", Permissions: []string{"files.upload"}})

	handler := svc.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r)
		if claims == nil || claims.Username != "bob" {
			t.Errorf("Expected claims in context, got %+v", claims)
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	svc := newTestService(time.Hour)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	run := func(permissions []string, capability string) int {
		token, _ := svc.IssueToken(Claims{Username: "u", Role: "R", Permissions: permissions})
		handler := svc.HTTPMiddleware(RequirePermission(capability)(ok))
		req := httptest.NewRequest(http.MethodGet, "/api/analytics", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := run([]string{"analytics.view"}, "analytics.view"); got != http.StatusOK {
		t.Errorf("Exact capability should pass, got %d", got)
	}
	if got := run([]string{"*"}, "admin.dashboard"); got != http.StatusOK {
		t.Errorf("Wildcard should pass, got %d", got)
	}
	if got := run([]string{"files.upload"}, "analytics.view"); got != http.StatusForbidden {
		t.Errorf("Missing capability should 403, got %d", got)
	}
}
