package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies a security-relevant event
type EventType string

const (
	EventLoginSuccess               EventType = "login_success"
	EventLoginFailed                EventType = "login_failed"
	EventPasswordChanged            EventType = "password_changed"
	EventPrivilegeEscalationAttempt EventType = "privilege_escalation_attempt"
	EventAccountCreated             EventType = "account_created"
	EventAccountDeleted             EventType = "account_deleted"
	EventAdminAction                EventType = "admin_action"
	EventAccountLocked              EventType = "account_locked"
	EventAccountUnlocked            EventType = "account_unlocked"
)

// Severity classifies the forensic weight of an event
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is a single append-only audit record. Events are immutable once
// written; nothing in this package updates or deletes them.
type Event struct {
	ID             uuid.UUID
	Timestamp      time.Time
	Type           EventType
	Severity       Severity
	ActorUserID    *int64
	ActorUsername  *string
	SourceAddress  *string
	TargetEndpoint *string
	Description    string
	Success        bool
	Extra          map[string]any
}

// ListFilter narrows a forensic query over recorded events
type ListFilter struct {
	Type          EventType
	ActorUsername string
	Limit         int
}
