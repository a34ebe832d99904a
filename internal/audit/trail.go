// Package audit implements the append-only security event trail. Every
// event is written durably and mirrored to the operational log stream;
// the two writes are independent and neither blocks the other.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aacassist/security-core/internal/logger"
	"github.com/aacassist/security-core/internal/metrics"
)

// Store persists audit events durably
type Store interface {
	Insert(ctx context.Context, event *Event) error
	List(ctx context.Context, filter ListFilter) ([]Event, error)
}

// Trail is the audit sink handed to every service that observes
// security-relevant operations. It holds no decision logic.
type Trail struct {
	store  Store
	logger *slog.Logger
}

// NewTrail creates a new Trail instance
func NewTrail(store Store, logger *slog.Logger) *Trail {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trail{
		store:  store,
		logger: logger,
	}
}

// Log records an event and returns its persisted ID. Auditing never blocks
// the operation it observes: an unserializable extra payload is dropped to
// empty, and a failed durable write is logged and swallowed.
func (t *Trail) Log(ctx context.Context, event Event) uuid.UUID {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	if event.Extra != nil {
		if _, err := json.Marshal(event.Extra); err != nil {
			t.logger.Warn("audit extra payload not serializable, storing empty",
				"event_type", event.Type, "error", err)
			event.Extra = nil
		}
	}

	// Attach the request correlation ID so forensic queries can be joined
	// with access logs. The caller's map is copied, not mutated.
	if cid := logger.GetCorrelationID(ctx); cid != "" {
		extra := make(map[string]any, len(event.Extra)+1)
		for k, v := range event.Extra {
			extra[k] = v
		}
		extra["correlation_id"] = cid
		event.Extra = extra
	}

	if err := t.store.Insert(ctx, &event); err != nil {
		t.logger.Error("audit event durable write failed",
			"event_type", event.Type, "event_id", event.ID, "error", err)
	}

	metrics.AuditEventsTotal.WithLabelValues(string(event.Type), string(event.Severity)).Inc()
	t.mirror(event)

	return event.ID
}

// Recent returns recorded events for forensic review, newest first
func (t *Trail) Recent(ctx context.Context, filter ListFilter) ([]Event, error) {
	return t.store.List(ctx, filter)
}

// mirror writes the event to the operational log stream
func (t *Trail) mirror(event Event) {
	attrs := []any{
		"event_id", event.ID.String(),
		"event_type", string(event.Type),
		"severity", string(event.Severity),
		"success", event.Success,
		"description", event.Description,
	}
	if event.ActorUsername != nil {
		attrs = append(attrs, "actor_username", *event.ActorUsername)
	}
	if event.ActorUserID != nil {
		attrs = append(attrs, "actor_user_id", *event.ActorUserID)
	}
	if event.SourceAddress != nil {
		attrs = append(attrs, "source_address", *event.SourceAddress)
	}

	switch event.Severity {
	case SeverityCritical:
		t.logger.Error("audit event", attrs...)
	case SeverityWarning:
		t.logger.Warn("audit event", attrs...)
	default:
		t.logger.Info("audit event", attrs...)
	}
}

// The constructors below are sugar over Log; they add no behavior beyond
// filling in the type, severity and description for each event kind.

// LoginSuccess records a successful authentication
func (t *Trail) LoginSuccess(ctx context.Context, userID int64, username, source string) uuid.UUID {
	return t.Log(ctx, Event{
		Type:          EventLoginSuccess,
		Severity:      SeverityInfo,
		ActorUserID:   &userID,
		ActorUsername: &username,
		SourceAddress: optional(source),
		Description:   "login succeeded",
		Success:       true,
	})
}

// LoginFailed records a failed authentication attempt
func (t *Trail) LoginFailed(ctx context.Context, username, source, reason string) uuid.UUID {
	return t.Log(ctx, Event{
		Type:          EventLoginFailed,
		Severity:      SeverityWarning,
		ActorUsername: &username,
		SourceAddress: optional(source),
		Description:   reason,
		Success:       false,
	})
}

// AccountLocked records a brute-force lockout being triggered
func (t *Trail) AccountLocked(ctx context.Context, username, source string, until time.Time, attempts int) uuid.UUID {
	return t.Log(ctx, Event{
		Type:          EventAccountLocked,
		Severity:      SeverityWarning,
		ActorUsername: &username,
		SourceAddress: optional(source),
		Description:   "account locked after repeated failed logins",
		Success:       true,
		Extra: map[string]any{
			"locked_until":  until.UTC().Format(time.RFC3339),
			"attempt_count": attempts,
		},
	})
}

// AccountUnlocked records an administrative unlock
func (t *Trail) AccountUnlocked(ctx context.Context, actorID int64, actorUsername, target, source string) uuid.UUID {
	return t.Log(ctx, Event{
		Type:          EventAccountUnlocked,
		Severity:      SeverityInfo,
		ActorUserID:   &actorID,
		ActorUsername: &actorUsername,
		SourceAddress: optional(source),
		Description:   "account unlocked by administrator",
		Success:       true,
		Extra:         map[string]any{"target_username": target},
	})
}

// PasswordChanged records a credential rotation
func (t *Trail) PasswordChanged(ctx context.Context, userID int64, username, source string) uuid.UUID {
	return t.Log(ctx, Event{
		Type:          EventPasswordChanged,
		Severity:      SeverityInfo,
		ActorUserID:   &userID,
		ActorUsername: &username,
		SourceAddress: optional(source),
		Description:   "password changed",
		Success:       true,
	})
}

// PrivilegeEscalationAttempt records a request for privileges the caller
// is not entitled to
func (t *Trail) PrivilegeEscalationAttempt(ctx context.Context, username, source, detail string) uuid.UUID {
	return t.Log(ctx, Event{
		Type:          EventPrivilegeEscalationAttempt,
		Severity:      SeverityCritical,
		ActorUsername: &username,
		SourceAddress: optional(source),
		Description:   detail,
		Success:       false,
	})
}

// AccountCreated records a new account entering the directory
func (t *Trail) AccountCreated(ctx context.Context, userID int64, username, source, role string) uuid.UUID {
	return t.Log(ctx, Event{
		Type:          EventAccountCreated,
		Severity:      SeverityInfo,
		ActorUserID:   &userID,
		ActorUsername: &username,
		SourceAddress: optional(source),
		Description:   "account created",
		Success:       true,
		Extra:         map[string]any{"role": role},
	})
}

// AdminAction records a privileged operation performed by an administrator
func (t *Trail) AdminAction(ctx context.Context, actorID int64, actorUsername, source, detail string) uuid.UUID {
	return t.Log(ctx, Event{
		Type:          EventAdminAction,
		Severity:      SeverityInfo,
		ActorUserID:   &actorID,
		ActorUsername: &actorUsername,
		SourceAddress: optional(source),
		Description:   detail,
		Success:       true,
	})
}

// optional converts an empty string to a nil pointer
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
