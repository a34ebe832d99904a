package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aacassist/security-core/internal/audit"
	"github.com/aacassist/security-core/internal/auth"
	appctx "github.com/aacassist/security-core/internal/context"
	"github.com/aacassist/security-core/internal/repository"
)

type nopAuditStore struct {
	events []audit.Event
}

func (s *nopAuditStore) Insert(_ context.Context, event *audit.Event) error {
	s.events = append(s.events, *event)
	return nil
}

func (s *nopAuditStore) List(_ context.Context, _ audit.ListFilter) ([]audit.Event, error) {
	return s.events, nil
}

func newTestMiddleware(t *testing.T) (*AuthMiddleware, *auth.TokenService, *nopAuditStore) {
	t.Helper()

	tokens, err := auth.NewTokenService(auth.TokenServiceConfig{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	store := &nopAuditStore{}
	return NewAuthMiddleware(tokens, audit.NewTrail(store, nil)), tokens, store
}

func TestAuthenticateMissingHeader(t *testing.T) {
	mw, _, _ := newTestMiddleware(t)

	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached without credentials")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rec.Code)
	}
}

func TestAuthenticateMalformedHeader(t *testing.T) {
	mw, _, _ := newTestMiddleware(t)

	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached with malformed header")
	}))

	for _, header := range []string{"Basic abc", "Bearer", "Bearer ", "token"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status got %d, want 401", header, rec.Code)
		}
	}
}

func TestAuthenticatePlacesIdentity(t *testing.T) {
	mw, tokens, _ := newTestMiddleware(t)

	token, err := tokens.IssueAccessToken(7, "alice", repository.RoleTeacher)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	var called bool
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true

		userID, ok := appctx.ExtractUserID(r.Context())
		if !ok || userID != 7 {
			t.Fatalf("user ID: got (%d, %v)", userID, ok)
		}
		username, _ := appctx.ExtractUsername(r.Context())
		if username != "alice" {
			t.Fatalf("username: got %q", username)
		}
		role, _ := appctx.ExtractRole(r.Context())
		if role != string(repository.RoleTeacher) {
			t.Fatalf("role: got %q", role)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Fatal("handler not reached")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	expired, err := auth.NewTokenService(auth.TokenServiceConfig{
		Secret:            "test-secret",
		AccessTokenExpiry: -time.Minute,
	})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	mw, _, _ := newTestMiddleware(t)
	token, err := expired.IssueAccessToken(7, "alice", repository.RoleStudent)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached with expired token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rec.Code)
	}
}

func TestAuthenticateRejectsRefreshToken(t *testing.T) {
	mw, tokens, _ := newTestMiddleware(t)

	refresh, err := tokens.IssueRefreshToken(7, "alice")
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}

	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached with refresh token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	mw, _, store := newTestMiddleware(t)

	var called bool
	handler := mw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	// Non-admin caller is rejected and the denial is audited.
	req := httptest.NewRequest(http.MethodPost, "/admin/users", nil)
	req = req.WithContext(appctx.WithIdentity(req.Context(), 7, "alice", string(repository.RoleTeacher)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Fatal("handler reached by non-admin")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 403", rec.Code)
	}
	if len(store.events) != 1 || store.events[0].Type != audit.EventPrivilegeEscalationAttempt {
		t.Fatalf("denial not audited: %+v", store.events)
	}

	// Admin passes.
	req = httptest.NewRequest(http.MethodPost, "/admin/users", nil)
	req = req.WithContext(appctx.WithIdentity(req.Context(), 1, "root", string(repository.RoleAdmin)))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Fatal("handler not reached by admin")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
}
