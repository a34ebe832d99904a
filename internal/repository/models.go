package repository

import (
	"strings"
	"time"
)

// Role is the privilege level of a user account.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// ParseRole returns the Role for a raw string, case-insensitively.
// The second return value is false for unknown roles.
func ParseRole(s string) (Role, bool) {
	switch role := Role(strings.ToLower(s)); role {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return role, true
	}
	return "", false
}

// Valid reports whether the role is one of the three known roles
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// User represents a row in the users table. The security core reads all
// fields; role and active flags are written only through admin paths.
type User struct {
	ID           int64
	Username     string
	Email        *string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// FailedAttempt is the per-username brute-force record. One row per
// username; window_start and attempt_count roll over when the counting
// window expires. LockedUntil is set exactly when attempt_count reached
// the configured maximum at the time of the last failure.
type FailedAttempt struct {
	Username      string
	SourceAddress *string
	WindowStart   time.Time
	AttemptCount  int
	LockedUntil   *time.Time
}

// Assignment links a teacher to a student for delegated access decisions.
type Assignment struct {
	TeacherID int64
	StudentID int64
	CreatedAt time.Time
}
