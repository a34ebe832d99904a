package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/aacassist/security-core/internal/logger"
)

type fakeStore struct {
	events  []Event
	failNow bool
}

func (s *fakeStore) Insert(_ context.Context, event *Event) error {
	if s.failNow {
		return errors.New("disk on fire")
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *fakeStore) List(_ context.Context, _ ListFilter) ([]Event, error) {
	return s.events, nil
}

func TestLogFillsDefaults(t *testing.T) {
	store := &fakeStore{}
	trail := NewTrail(store, nil)

	id := trail.Log(context.Background(), Event{
		Type:        EventLoginSuccess,
		Description: "login succeeded",
		Success:     true,
	})

	if id == uuid.Nil {
		t.Fatal("no event ID assigned")
	}
	if len(store.events) != 1 {
		t.Fatalf("events stored: got %d, want 1", len(store.events))
	}

	stored := store.events[0]
	if stored.ID != id {
		t.Fatalf("stored ID %v does not match returned ID %v", stored.ID, id)
	}
	if stored.Timestamp.IsZero() {
		t.Fatal("timestamp not filled")
	}
	if stored.Severity != SeverityInfo {
		t.Fatalf("severity: got %q, want info", stored.Severity)
	}
}

func TestLogPreservesExplicitFields(t *testing.T) {
	store := &fakeStore{}
	trail := NewTrail(store, nil)

	trail.Log(context.Background(), Event{
		Type:     EventPrivilegeEscalationAttempt,
		Severity: SeverityCritical,
	})

	if store.events[0].Severity != SeverityCritical {
		t.Fatalf("severity overwritten: got %q", store.events[0].Severity)
	}
}

func TestUnserializableExtraDropped(t *testing.T) {
	store := &fakeStore{}
	trail := NewTrail(store, nil)

	trail.Log(context.Background(), Event{
		Type:  EventAdminAction,
		Extra: map[string]any{"bad": make(chan int)},
	})

	if len(store.events) != 1 {
		t.Fatalf("event not stored: got %d", len(store.events))
	}
	if store.events[0].Extra != nil {
		t.Fatal("unserializable extra not dropped")
	}
}

func TestLogAttachesCorrelationID(t *testing.T) {
	store := &fakeStore{}
	trail := NewTrail(store, nil)

	ctx := logger.SetCorrelationID(context.Background(), "req-1234")
	extra := map[string]any{"role": "student"}

	trail.Log(ctx, Event{
		Type:  EventAccountCreated,
		Extra: extra,
	})

	stored := store.events[0]
	if got := stored.Extra["correlation_id"]; got != "req-1234" {
		t.Fatalf("correlation_id: got %v, want req-1234", got)
	}
	if got := stored.Extra["role"]; got != "student" {
		t.Fatalf("existing extra field lost: %v", stored.Extra)
	}
	if _, ok := extra["correlation_id"]; ok {
		t.Fatal("caller's extra map was mutated")
	}

	// Without a correlation ID on the context the extra payload is
	// stored as given.
	trail.Log(context.Background(), Event{Type: EventLoginFailed})
	if store.events[1].Extra != nil {
		t.Fatalf("unexpected extra payload: %v", store.events[1].Extra)
	}
}

func TestStoreFailureDoesNotBlock(t *testing.T) {
	store := &fakeStore{failNow: true}
	trail := NewTrail(store, nil)

	id := trail.Log(context.Background(), Event{Type: EventLoginFailed})
	if id == uuid.Nil {
		t.Fatal("no ID returned despite store failure")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	store := &fakeStore{}
	trail := NewTrail(store, nil)
	ctx := context.Background()

	trail.LoginSuccess(ctx, 7, "alice", "10.0.0.1")
	trail.LoginFailed(ctx, "alice", "10.0.0.1", "wrong password")
	trail.PrivilegeEscalationAttempt(ctx, "mallory", "", "requested admin at registration")

	if len(store.events) != 3 {
		t.Fatalf("events: got %d, want 3", len(store.events))
	}

	success := store.events[0]
	if success.Type != EventLoginSuccess || !success.Success {
		t.Fatalf("unexpected login_success event: %+v", success)
	}
	if success.ActorUserID == nil || *success.ActorUserID != 7 {
		t.Fatal("actor user ID missing")
	}
	if success.SourceAddress == nil || *success.SourceAddress != "10.0.0.1" {
		t.Fatal("source address missing")
	}

	escalation := store.events[2]
	if escalation.Severity != SeverityCritical {
		t.Fatalf("escalation severity: got %q, want critical", escalation.Severity)
	}
	if escalation.SourceAddress != nil {
		t.Fatal("empty source address should be nil")
	}
}
