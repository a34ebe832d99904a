package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aacassist/security-core/internal/repository"
)

// APIResponse is the uniform response envelope
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError carries a machine-readable code alongside the human message
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Success:   status < 400,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now().UTC(),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// writeServiceError maps service-layer errors to HTTP responses. Unknown
// errors become an opaque 500 so internal details never leak.
func writeServiceError(w http.ResponseWriter, err error) {
	var lockedErr *AccountLockedError
	var weakErr *WeakPasswordError

	switch {
	case errors.As(err, &lockedErr):
		writeError(w, http.StatusForbidden, CodeAccountLocked,
			"Account is temporarily locked until "+lockedErr.Until.UTC().Format(time.RFC3339), nil)
	case errors.As(err, &weakErr):
		writeError(w, http.StatusBadRequest, CodeWeakPassword,
			"Password does not meet the strength requirements", weakErr.Violations)
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid username or password", nil)
	case errors.Is(err, ErrAccountInactive):
		writeError(w, http.StatusForbidden, CodeAccountInactive, "Account is deactivated", nil)
	case errors.Is(err, ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, CodeAuthTokenInvalid, "Token has expired", nil)
	case errors.Is(err, ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, CodeAuthTokenInvalid, "Invalid token", nil)
	case errors.Is(err, ErrPasswordMismatch):
		writeError(w, http.StatusBadRequest, CodePasswordMismatch, "Password and confirmation do not match", nil)
	case errors.Is(err, ErrInvalidAssignment):
		writeError(w, http.StatusBadRequest, CodeInvalidAssignment,
			"Assignments must link a teacher account to a student account", nil)
	case errors.Is(err, ErrUnauthorized):
		writeError(w, http.StatusForbidden, CodeForbidden, "Operation not permitted", nil)
	case errors.Is(err, repository.ErrUsernameTaken):
		writeError(w, http.StatusConflict, CodeUsernameTaken, "Username is already taken", nil)
	case errors.Is(err, repository.ErrUserNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "User not found", nil)
	default:
		slog.Error("unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
	}
}

// getClientIP extracts the originating client address, preferring proxy
// headers over the socket peer
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
