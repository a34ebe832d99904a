package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aacassist/security-core/internal/audit"
)

// auditRepository implements audit.Store using PostgreSQL. The table is
// append-only; no update or delete path exists here.
type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new audit.Store instance
func NewAuditRepository(pool *pgxpool.Pool) audit.Store {
	return &auditRepository{pool: pool}
}

// Insert appends a single audit event
func (r *auditRepository) Insert(ctx context.Context, event *audit.Event) error {
	extra := []byte("{}")
	if event.Extra != nil {
		if b, err := json.Marshal(event.Extra); err == nil {
			extra = b
		}
	}

	query := `
		INSERT INTO audit_events
			(id, created_at, event_type, severity, actor_user_id, actor_username,
			 source_address, target_endpoint, description, success, extra)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.Timestamp,
		event.Type,
		event.Severity,
		event.ActorUserID,
		event.ActorUsername,
		event.SourceAddress,
		event.TargetEndpoint,
		event.Description,
		event.Success,
		extra,
	)

	return err
}

// List returns recent events matching the filter, newest first
func (r *auditRepository) List(ctx context.Context, filter audit.ListFilter) ([]audit.Event, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, created_at, event_type, severity, actor_user_id, actor_username,
		       source_address, target_endpoint, description, success, extra
		FROM audit_events
		WHERE ($1 = '' OR event_type = $1)
		  AND ($2 = '' OR LOWER(actor_username) = LOWER($2))
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, string(filter.Type), filter.ActorUsername, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var event audit.Event
		var extra []byte
		err := rows.Scan(
			&event.ID,
			&event.Timestamp,
			&event.Type,
			&event.Severity,
			&event.ActorUserID,
			&event.ActorUsername,
			&event.SourceAddress,
			&event.TargetEndpoint,
			&event.Description,
			&event.Success,
			&extra,
		)
		if err != nil {
			return nil, err
		}
		if len(extra) > 0 {
			_ = json.Unmarshal(extra, &event.Extra)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
