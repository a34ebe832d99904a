package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Lockout store errors
var (
	ErrNoFailedAttempts = errors.New("no failed attempt record")
)

// FailureParams carries the inputs for recording a single failed login.
// The caller computes the window cutoff and prospective lock expiry so the
// store can apply them in one statement.
type FailureParams struct {
	Username      string
	SourceAddress string
	Now           time.Time
	WindowCutoff  time.Time
	MaxAttempts   int
	LockExpiry    time.Time
}

// LockoutStore defines the interface for brute-force attempt tracking
type LockoutStore interface {
	RecordFailure(ctx context.Context, p FailureParams) (*FailedAttempt, error)
	Get(ctx context.Context, username string) (*FailedAttempt, error)
	DeleteAll(ctx context.Context, username string) (int64, error)
}

// lockoutRepository implements LockoutStore using PostgreSQL
type lockoutRepository struct {
	pool *pgxpool.Pool
}

// NewLockoutRepository creates a new LockoutStore instance
func NewLockoutRepository(pool *pgxpool.Pool) LockoutStore {
	return &lockoutRepository{pool: pool}
}

// RecordFailure upserts the failed-attempt row for a username in a single
// statement. Counting, window rollover and the lock decision all happen
// inside the statement, so two concurrent failures cannot lose an update
// between a read of attempt_count and its increment.
func (r *lockoutRepository) RecordFailure(ctx context.Context, p FailureParams) (*FailedAttempt, error) {
	query := `
		INSERT INTO failed_login_attempts (username, source_address, window_start, attempt_count, locked_until)
		VALUES ($1, NULLIF($2, ''), $3, 1, NULL)
		ON CONFLICT (username) DO UPDATE SET
			attempt_count = CASE WHEN failed_login_attempts.window_start < $4
				THEN 1
				ELSE failed_login_attempts.attempt_count + 1 END,
			window_start = CASE WHEN failed_login_attempts.window_start < $4
				THEN $3
				ELSE failed_login_attempts.window_start END,
			source_address = COALESCE(NULLIF($2, ''), failed_login_attempts.source_address),
			locked_until = CASE WHEN (CASE WHEN failed_login_attempts.window_start < $4
					THEN 1
					ELSE failed_login_attempts.attempt_count + 1 END) >= $5
				THEN $6
				ELSE NULL END
		RETURNING username, source_address, window_start, attempt_count, locked_until
	`

	rec := &FailedAttempt{}
	err := r.pool.QueryRow(ctx, query,
		strings.ToLower(p.Username),
		p.SourceAddress,
		p.Now,
		p.WindowCutoff,
		p.MaxAttempts,
		p.LockExpiry,
	).Scan(&rec.Username, &rec.SourceAddress, &rec.WindowStart, &rec.AttemptCount, &rec.LockedUntil)

	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Get retrieves the failed-attempt record for a username
func (r *lockoutRepository) Get(ctx context.Context, username string) (*FailedAttempt, error) {
	query := `
		SELECT username, source_address, window_start, attempt_count, locked_until
		FROM failed_login_attempts
		WHERE username = LOWER($1)
	`

	rec := &FailedAttempt{}
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&rec.Username,
		&rec.SourceAddress,
		&rec.WindowStart,
		&rec.AttemptCount,
		&rec.LockedUntil,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoFailedAttempts
		}
		return nil, err
	}

	return rec, nil
}

// DeleteAll removes the failed-attempt record for a username. Deleting a
// missing record is not an error, so administrative unlock stays idempotent.
func (r *lockoutRepository) DeleteAll(ctx context.Context, username string) (int64, error) {
	query := `DELETE FROM failed_login_attempts WHERE username = LOWER($1)`

	result, err := r.pool.Exec(ctx, query, username)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}
