// Package postgres implements the PostgreSQL record store for Progress Hub.
package postgres

import (
	"context"
	"fmt"

	"github.com/schoolhub/progress-hub/internal/domain/repository"
	"github.com/schoolhub/progress-hub/internal/domain/shared"
	"github.com/schoolhub/progress-hub/internal/domain/student"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentStore implements repository.Store[*student.Student] for PostgreSQL.
// Relation "progress_records" is materialized with a single batched query
// over the selected student ids.
type StudentStore struct {
	conn *Connection
}

// NewStudentStore creates a new StudentStore.
func NewStudentStore(conn *Connection) *StudentStore {
	return &StudentStore{conn: conn}
}

const studentColumns = `
	id, full_name, grade, teacher_id,
	is_deleted, inserted_at, updated_at, inserted_by, updated_by, tenant_id
`

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// Select returns students matching the query in stable order
// (inserted_at, then id).
func (s *StudentStore) Select(ctx context.Context, q repository.Query) ([]*student.Student, error) {
	for _, rel := range q.Relations {
		if rel != student.RelationProgress {
			return nil, shared.NewDomainError("student", "Select", shared.ErrInvalidInput,
				fmt.Sprintf("unknown relation %q", rel))
		}
	}

	query := `SELECT ` + studentColumns + ` FROM students`
	where, args := buildFilter(q)
	query += where + ` ORDER BY inserted_at, id`

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select students: %w", err)
	}
	defer rows.Close()

	var result []*student.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate students: %w", err)
	}

	if len(q.Relations) > 0 && len(result) > 0 {
		if err := s.loadProgress(ctx, q, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// Count returns the number of students matching the query.
func (s *StudentStore) Count(ctx context.Context, q repository.Query) (int, error) {
	query := `SELECT COUNT(*) FROM students`
	where, args := buildFilter(q)

	var count int
	if err := s.conn.QueryRow(ctx, query+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return count, nil
}

// loadProgress attaches non-deleted progress records to the selected students
// with a single batched query.
func (s *StudentStore) loadProgress(ctx context.Context, q repository.Query, students []*student.Student) error {
	ids := make([]string, len(students))
	index := make(map[string]*student.Student, len(students))
	for i, st := range students {
		ids[i] = st.ID
		index[st.ID] = st
		st.ProgressRecords = []*student.Progress{}
	}

	query := `SELECT ` + progressColumns + `
		FROM progress_records
		WHERE student_id = ANY($1)`
	args := []interface{}{ids}
	if !q.IncludeDeleted {
		query += ` AND is_deleted = FALSE`
	}
	query += ` ORDER BY inserted_at, id`

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load progress records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return err
		}
		if owner, ok := index[p.StudentID]; ok {
			owner.ProgressRecords = append(owner.ProgressRecords, p)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate progress records: %w", err)
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

// Apply commits a change batch inside a single transaction.
// Either every change lands or none does.
func (s *StudentStore) Apply(ctx context.Context, changes []repository.Change[*student.Student]) error {
	if len(changes) == 0 {
		return nil
	}

	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, ch := range changes {
			var err error
			switch ch.Kind {
			case repository.ChangeInsert:
				err = insertStudent(ctx, tx, ch.Entity)
			case repository.ChangeUpdate:
				err = updateStudent(ctx, tx, ch.Entity)
			default:
				err = shared.NewDomainError("student", "Apply", shared.ErrInvalidInput,
					fmt.Sprintf("unknown change kind %d", ch.Kind))
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func insertStudent(ctx context.Context, tx pgx.Tx, st *student.Student) error {
	query := `
		INSERT INTO students (` + studentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := tx.Exec(ctx, query,
		st.ID,
		st.FullName,
		st.Grade,
		st.TeacherID,
		st.IsDeleted,
		st.InsertedAt,
		st.UpdatedAt,
		st.InsertedBy,
		st.UpdatedBy,
		nullableTenant(st.TenantID),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("student", "Apply", shared.ErrConstraint,
				fmt.Sprintf("student %s already exists", st.ID))
		}
		return fmt.Errorf("failed to insert student: %w", err)
	}
	return nil
}

func updateStudent(ctx context.Context, tx pgx.Tx, st *student.Student) error {
	query := `
		UPDATE students SET
			full_name = $2, grade = $3, teacher_id = $4,
			is_deleted = $5, updated_at = $6, updated_by = $7
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query,
		st.ID,
		st.FullName,
		st.Grade,
		st.TeacherID,
		st.IsDeleted,
		st.UpdatedAt,
		st.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("student", "Apply", shared.ErrConstraint,
			fmt.Sprintf("student %s does not exist", st.ID))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanStudent(row pgx.Row) (*student.Student, error) {
	var st student.Student
	var tenantID *string

	err := row.Scan(
		&st.ID,
		&st.FullName,
		&st.Grade,
		&st.TeacherID,
		&st.IsDeleted,
		&st.InsertedAt,
		&st.UpdatedAt,
		&st.InsertedBy,
		&st.UpdatedBy,
		&tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}

	if tenantID != nil {
		st.TenantID = *tenantID
	}
	st.InsertedAt = st.InsertedAt.UTC()
	st.UpdatedAt = st.UpdatedAt.UTC()

	return &st, nil
}

// ═════════════════════════════════════════════════════════════════════════════
// QUERY FILTER
// ═════════════════════════════════════════════════════════════════════════════

// buildFilter translates a repository.Query into a WHERE clause shared by
// both stores. The deleted filter is applied unless inspection is requested.
func buildFilter(q repository.Query) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if !q.IncludeDeleted {
		conditions = append(conditions, "is_deleted = FALSE")
	}
	if q.TenantID != "" {
		args = append(args, q.TenantID)
		conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if len(q.IDs) > 0 {
		args = append(args, q.IDs)
		conditions = append(conditions, fmt.Sprintf("id = ANY($%d)", len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}

	where := " WHERE " + conditions[0]
	for _, c := range conditions[1:] {
		where += " AND " + c
	}
	return where, args
}

// nullableTenant maps the empty tenant marker to SQL NULL.
func nullableTenant(tenantID string) *string {
	if tenantID == "" {
		return nil
	}
	return &tenantID
}
