package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aacassist/security-core/internal/repository"
)

// Lockout defaults
const (
	DefaultMaxAttempts     = 5
	DefaultLockoutWindow   = 60 * time.Minute
	DefaultLockoutDuration = 15 * time.Minute
)

// FailureState is the outcome of recording a failed login
type FailureState struct {
	Locked       bool
	LockedUntil  *time.Time
	AttemptCount int
}

// LockoutTracker tracks failed logins per username and locks accounts that
// exceed the attempt threshold within the counting window. The counting
// window and the lockout duration are independent, so a lock always
// expires predictably regardless of when the window started.
type LockoutTracker struct {
	store       repository.LockoutStore
	maxAttempts int
	window      time.Duration
	lockout     time.Duration
	now         func() time.Time
}

// LockoutTrackerConfig holds configuration for LockoutTracker
type LockoutTrackerConfig struct {
	MaxAttempts     int
	Window          time.Duration
	LockoutDuration time.Duration
}

// NewLockoutTracker creates a new LockoutTracker instance
func NewLockoutTracker(store repository.LockoutStore, cfg LockoutTrackerConfig) *LockoutTracker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultLockoutWindow
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = DefaultLockoutDuration
	}

	return &LockoutTracker{
		store:       store,
		maxAttempts: cfg.MaxAttempts,
		window:      cfg.Window,
		lockout:     cfg.LockoutDuration,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RecordFailure counts one failed login for the username. The store applies
// window rollover, increment and the lock decision in a single atomic
// statement; the returned state reflects the record after this failure.
func (t *LockoutTracker) RecordFailure(ctx context.Context, username, sourceAddress string) (FailureState, error) {
	now := t.now()

	rec, err := t.store.RecordFailure(ctx, repository.FailureParams{
		Username:      strings.ToLower(username),
		SourceAddress: sourceAddress,
		Now:           now,
		WindowCutoff:  now.Add(-t.window),
		MaxAttempts:   t.maxAttempts,
		LockExpiry:    now.Add(t.lockout),
	})
	if err != nil {
		return FailureState{}, err
	}

	state := FailureState{AttemptCount: rec.AttemptCount}
	if rec.LockedUntil != nil {
		until := normalizeUTC(*rec.LockedUntil)
		state.Locked = true
		state.LockedUntil = &until
	}

	return state, nil
}

// IsLocked reports whether the username is currently locked and, if so,
// when the lock expires.
func (t *LockoutTracker) IsLocked(ctx context.Context, username string) (bool, *time.Time, error) {
	rec, err := t.store.Get(ctx, strings.ToLower(username))
	if err != nil {
		if errors.Is(err, repository.ErrNoFailedAttempts) {
			return false, nil, nil
		}
		return false, nil, err
	}

	if rec.LockedUntil == nil {
		return false, nil, nil
	}

	until := normalizeUTC(*rec.LockedUntil)
	if until.After(t.now()) {
		return true, &until, nil
	}

	return false, nil, nil
}

// ResetAttempts clears all failure records for the username. Called exactly
// once, on successful authentication.
func (t *LockoutTracker) ResetAttempts(ctx context.Context, username string) error {
	_, err := t.store.DeleteAll(ctx, strings.ToLower(username))
	return err
}

// Unlock clears all failure records for the username unconditionally.
// It succeeds even when no record exists.
func (t *LockoutTracker) Unlock(ctx context.Context, username string) error {
	_, err := t.store.DeleteAll(ctx, strings.ToLower(username))
	return err
}

// normalizeUTC is the single timestamp normalization point for lockout
// comparisons. Every timestamp is converted here before any comparison so
// records read back with a different zone representation cannot skew the
// expiry check.
func normalizeUTC(ts time.Time) time.Time {
	return ts.UTC()
}
