// Package authz implements role- and relationship-based access decisions.
// The policy is deny-by-default: a request is allowed only when one of the
// ordered rules grants it.
package authz

import (
	"context"

	"github.com/aacassist/security-core/internal/repository"
)

// RelationshipScope is the visibility a teacher has over students,
// resolved once per teacher at decision time.
type RelationshipScope int

const (
	// ScopeAssignedOnly restricts a teacher to explicitly assigned students
	ScopeAssignedOnly RelationshipScope = iota
	// ScopeUnrestricted grants visibility over all students. It applies
	// only to teachers with zero assignment records, a deliberate
	// compatibility relaxation for deployments with no assignment data yet.
	ScopeUnrestricted
)

// String returns the scope name
func (s RelationshipScope) String() string {
	if s == ScopeUnrestricted {
		return "unrestricted"
	}
	return "assigned_only"
}

// RelationshipStore looks up teacher-student relationship records
type RelationshipStore interface {
	AssignmentCount(ctx context.Context, teacherID int64) (int, error)
	IsAssigned(ctx context.Context, teacherID, studentID int64) (bool, error)
}

// Request carries the inputs of a single access decision
type Request struct {
	ActorID    int64
	ActorRole  repository.Role
	TargetID   int64
	TargetRole repository.Role
	// Operation names the attempted operation for audit descriptions;
	// it does not influence the decision rules.
	Operation string
}

// Decision is the outcome of a policy check
type Decision struct {
	Allowed bool
	Reason  string
}

// Policy evaluates access requests against the ordered rule set
type Policy struct {
	relationships RelationshipStore
}

// NewPolicy creates a new Policy instance
func NewPolicy(relationships RelationshipStore) *Policy {
	return &Policy{relationships: relationships}
}

// Check evaluates the ordered rules: admin, self-access, teacher-to-student
// relationship, deny.
func (p *Policy) Check(ctx context.Context, req Request) (Decision, error) {
	if req.ActorRole == repository.RoleAdmin {
		return Decision{Allowed: true, Reason: "admin role"}, nil
	}

	if req.ActorID == req.TargetID {
		return Decision{Allowed: true, Reason: "self access"}, nil
	}

	if req.ActorRole == repository.RoleTeacher && req.TargetRole == repository.RoleStudent {
		scope, err := p.ScopeFor(ctx, req.ActorID)
		if err != nil {
			return Decision{}, err
		}
		if scope == ScopeUnrestricted {
			return Decision{Allowed: true, Reason: "teacher scope unrestricted"}, nil
		}

		assigned, err := p.relationships.IsAssigned(ctx, req.ActorID, req.TargetID)
		if err != nil {
			return Decision{}, err
		}
		if assigned {
			return Decision{Allowed: true, Reason: "assigned student"}, nil
		}
		return Decision{Allowed: false, Reason: "student not assigned to teacher"}, nil
	}

	return Decision{Allowed: false, Reason: "no rule grants access"}, nil
}

// ScopeFor resolves the relationship scope for a teacher. A teacher with no
// assignment records at all sees every student; one assignment record flips
// the teacher to assigned-only visibility.
func (p *Policy) ScopeFor(ctx context.Context, teacherID int64) (RelationshipScope, error) {
	count, err := p.relationships.AssignmentCount(ctx, teacherID)
	if err != nil {
		return ScopeAssignedOnly, err
	}
	if count == 0 {
		return ScopeUnrestricted, nil
	}
	return ScopeAssignedOnly, nil
}
