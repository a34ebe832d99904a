package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aacassist/security-core/internal/audit"
	"github.com/aacassist/security-core/internal/auth"
	appctx "github.com/aacassist/security-core/internal/context"
	"github.com/aacassist/security-core/internal/metrics"
	"github.com/aacassist/security-core/internal/repository"
)

// AuthMiddleware authenticates requests from bearer tokens and enforces
// role requirements on protected route groups
type AuthMiddleware struct {
	tokens *auth.TokenService
	trail  *audit.Trail
}

// NewAuthMiddleware creates a new AuthMiddleware instance
func NewAuthMiddleware(tokens *auth.TokenService, trail *audit.Trail) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		trail:  trail,
	}
}

// Authenticate validates the bearer token and places the caller identity on
// the request context. Expired and malformed tokens get distinct messages
// but the same status code.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeAuthError(w, http.StatusUnauthorized, auth.CodeAuthTokenMissing, "Authorization header required")
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeAuthError(w, http.StatusUnauthorized, auth.CodeAuthTokenInvalid, "Authorization header must be a bearer token")
			return
		}

		claims, err := m.tokens.ValidateAccessToken(token)
		if err != nil {
			metrics.TokenValidationsTotal.WithLabelValues(tokenOutcome(err)).Inc()
			if errors.Is(err, auth.ErrTokenExpired) {
				writeAuthError(w, http.StatusUnauthorized, auth.CodeAuthTokenInvalid, "Token has expired")
				return
			}
			writeAuthError(w, http.StatusUnauthorized, auth.CodeAuthTokenInvalid, "Invalid token")
			return
		}

		metrics.TokenValidationsTotal.WithLabelValues(metrics.ValidationOK).Inc()

		ctx := appctx.WithIdentity(r.Context(), claims.UserID, claims.Subject, string(claims.Role))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects callers without the admin role. Denials are written
// to the audit trail since a non-admin reaching an admin route is worth
// investigating.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := appctx.ExtractRole(r.Context())
		if repository.Role(role) != repository.RoleAdmin {
			username, _ := appctx.ExtractUsername(r.Context())
			endpoint := r.Method + " " + r.URL.Path
			m.trail.Log(r.Context(), audit.Event{
				Type:           audit.EventPrivilegeEscalationAttempt,
				Severity:       audit.SeverityWarning,
				ActorUsername:  &username,
				TargetEndpoint: &endpoint,
				Description:    "non-admin caller on admin endpoint",
				Success:        false,
			})
			writeAuthError(w, http.StatusForbidden, auth.CodeForbidden, "Admin role required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func tokenOutcome(err error) string {
	if errors.Is(err, auth.ErrTokenExpired) {
		return metrics.ValidationExpired
	}
	return metrics.ValidationInvalid
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := auth.APIResponse{
		Success: false,
		Error: &auth.APIError{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}

	_ = json.NewEncoder(w).Encode(resp)
}
