package authz

import (
	"context"
	"testing"

	"github.com/aacassist/security-core/internal/repository"
)

// memRelationshipStore is an in-memory RelationshipStore for policy tests
type memRelationshipStore struct {
	assignments map[int64][]int64
}

func (s *memRelationshipStore) AssignmentCount(_ context.Context, teacherID int64) (int, error) {
	return len(s.assignments[teacherID]), nil
}

func (s *memRelationshipStore) IsAssigned(_ context.Context, teacherID, studentID int64) (bool, error) {
	for _, id := range s.assignments[teacherID] {
		if id == studentID {
			return true, nil
		}
	}
	return false, nil
}

func TestPolicyCheck(t *testing.T) {
	store := &memRelationshipStore{assignments: map[int64][]int64{
		10: {100, 101}, // teacher 10 has explicit assignments
		// teacher 11 has none, so it sees every student
	}}
	policy := NewPolicy(store)

	tests := []struct {
		name    string
		req     Request
		allowed bool
	}{
		{
			name:    "admin reads anyone",
			req:     Request{ActorID: 1, ActorRole: repository.RoleAdmin, TargetID: 100, TargetRole: repository.RoleStudent},
			allowed: true,
		},
		{
			name:    "admin reads another admin",
			req:     Request{ActorID: 1, ActorRole: repository.RoleAdmin, TargetID: 2, TargetRole: repository.RoleAdmin},
			allowed: true,
		},
		{
			name:    "student reads self",
			req:     Request{ActorID: 100, ActorRole: repository.RoleStudent, TargetID: 100, TargetRole: repository.RoleStudent},
			allowed: true,
		},
		{
			name:    "teacher reads self",
			req:     Request{ActorID: 10, ActorRole: repository.RoleTeacher, TargetID: 10, TargetRole: repository.RoleTeacher},
			allowed: true,
		},
		{
			name:    "teacher reads assigned student",
			req:     Request{ActorID: 10, ActorRole: repository.RoleTeacher, TargetID: 100, TargetRole: repository.RoleStudent},
			allowed: true,
		},
		{
			name:    "teacher denied unassigned student",
			req:     Request{ActorID: 10, ActorRole: repository.RoleTeacher, TargetID: 200, TargetRole: repository.RoleStudent},
			allowed: false,
		},
		{
			name:    "teacher with no assignments reads any student",
			req:     Request{ActorID: 11, ActorRole: repository.RoleTeacher, TargetID: 200, TargetRole: repository.RoleStudent},
			allowed: true,
		},
		{
			name:    "teacher denied other teacher",
			req:     Request{ActorID: 10, ActorRole: repository.RoleTeacher, TargetID: 11, TargetRole: repository.RoleTeacher},
			allowed: false,
		},
		{
			name:    "teacher denied admin",
			req:     Request{ActorID: 11, ActorRole: repository.RoleTeacher, TargetID: 1, TargetRole: repository.RoleAdmin},
			allowed: false,
		},
		{
			name:    "student denied other student",
			req:     Request{ActorID: 100, ActorRole: repository.RoleStudent, TargetID: 101, TargetRole: repository.RoleStudent},
			allowed: false,
		},
		{
			name:    "student denied teacher",
			req:     Request{ActorID: 100, ActorRole: repository.RoleStudent, TargetID: 10, TargetRole: repository.RoleTeacher},
			allowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := policy.Check(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if decision.Allowed != tt.allowed {
				t.Fatalf("allowed: got %v, want %v (reason: %s)", decision.Allowed, tt.allowed, decision.Reason)
			}
			if decision.Reason == "" {
				t.Fatal("decision carries no reason")
			}
		})
	}
}

func TestScopeFor(t *testing.T) {
	store := &memRelationshipStore{assignments: map[int64][]int64{
		10: {100},
	}}
	policy := NewPolicy(store)

	scope, err := policy.ScopeFor(context.Background(), 10)
	if err != nil {
		t.Fatalf("ScopeFor: %v", err)
	}
	if scope != ScopeAssignedOnly {
		t.Fatalf("scope: got %v, want assigned_only", scope)
	}

	scope, err = policy.ScopeFor(context.Background(), 11)
	if err != nil {
		t.Fatalf("ScopeFor: %v", err)
	}
	if scope != ScopeUnrestricted {
		t.Fatalf("scope: got %v, want unrestricted", scope)
	}
}

func TestScopeString(t *testing.T) {
	if ScopeAssignedOnly.String() != "assigned_only" {
		t.Fatalf("got %q", ScopeAssignedOnly.String())
	}
	if ScopeUnrestricted.String() != "unrestricted" {
		t.Fatalf("got %q", ScopeUnrestricted.String())
	}
}
