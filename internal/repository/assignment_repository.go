package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AssignmentRepository defines the interface for teacher-student
// relationship records. It satisfies authz.RelationshipStore.
type AssignmentRepository interface {
	AssignmentCount(ctx context.Context, teacherID int64) (int, error)
	IsAssigned(ctx context.Context, teacherID, studentID int64) (bool, error)
	Assign(ctx context.Context, teacherID, studentID int64) error
	Unassign(ctx context.Context, teacherID, studentID int64) error
}

// assignmentRepository implements AssignmentRepository using PostgreSQL
type assignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository creates a new AssignmentRepository instance
func NewAssignmentRepository(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepository{pool: pool}
}

// AssignmentCount returns the number of students assigned to a teacher
func (r *assignmentRepository) AssignmentCount(ctx context.Context, teacherID int64) (int, error) {
	query := `SELECT COUNT(*) FROM teacher_assignments WHERE teacher_id = $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, teacherID).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// IsAssigned checks whether a relationship record links teacher and student
func (r *assignmentRepository) IsAssigned(ctx context.Context, teacherID, studentID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM teacher_assignments
			WHERE teacher_id = $1 AND student_id = $2
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, teacherID, studentID).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

// Assign creates a teacher-student relationship record, idempotently
func (r *assignmentRepository) Assign(ctx context.Context, teacherID, studentID int64) error {
	query := `
		INSERT INTO teacher_assignments (teacher_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (teacher_id, student_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query, teacherID, studentID)
	return err
}

// Unassign removes a teacher-student relationship record
func (r *assignmentRepository) Unassign(ctx context.Context, teacherID, studentID int64) error {
	query := `DELETE FROM teacher_assignments WHERE teacher_id = $1 AND student_id = $2`

	_, err := r.pool.Exec(ctx, query, teacherID, studentID)
	return err
}
