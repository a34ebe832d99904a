package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Auth service errors. Credential failures carry the same generic message
// regardless of cause, so callers cannot enumerate usernames.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountInactive    = errors.New("account is deactivated")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrPasswordMismatch   = errors.New("password and confirm_password do not match")
	ErrUnauthorized       = errors.New("operation not permitted")
	ErrInvalidAssignment  = errors.New("assignment must link a teacher to a student")
)

// Error codes for API responses
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeAccountInactive    = "ACCOUNT_INACTIVE"
	CodeUsernameTaken      = "USERNAME_TAKEN"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodePasswordMismatch   = "PASSWORD_MISMATCH"
	CodeInvalidAssignment  = "INVALID_ASSIGNMENT"
	CodeAuthTokenMissing   = "AUTH_TOKEN_MISSING"
	CodeAuthTokenInvalid   = "AUTH_TOKEN_INVALID"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
)

// AccountLockedError reports a login rejected because the account is
// locked; Until is the time the lock expires.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// WeakPasswordError reports which password policy rules failed
type WeakPasswordError struct {
	Violations []PasswordRuleViolation
}

func (e *WeakPasswordError) Error() string {
	messages := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		messages[i] = v.Message
	}
	return "weak password: " + strings.Join(messages, "; ")
}
