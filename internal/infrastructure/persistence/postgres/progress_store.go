// Package postgres implements the PostgreSQL record store for Progress Hub.
package postgres

import (
	"context"
	"fmt"

	"github.com/schoolhub/progress-hub/internal/domain/repository"
	"github.com/schoolhub/progress-hub/internal/domain/shared"
	"github.com/schoolhub/progress-hub/internal/domain/student"
	"github.com/schoolhub/progress-hub/pkg/timeutil"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressStore implements repository.Store[*student.Progress] for PostgreSQL.
// Progress records carry no relations of their own.
type ProgressStore struct {
	conn *Connection
}

// NewProgressStore creates a new ProgressStore.
func NewProgressStore(conn *Connection) *ProgressStore {
	return &ProgressStore{conn: conn}
}

const progressColumns = `
	id, student_id, subject, completion_percent, performance_score,
	time_spent_minutes, last_activity,
	is_deleted, inserted_at, updated_at, inserted_by, updated_by, tenant_id
`

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// Select returns progress records matching the query in stable order
// (inserted_at, then id).
func (s *ProgressStore) Select(ctx context.Context, q repository.Query) ([]*student.Progress, error) {
	if len(q.Relations) > 0 {
		return nil, shared.NewDomainError("progress", "Select", shared.ErrInvalidInput,
			fmt.Sprintf("unknown relation %q", q.Relations[0]))
	}

	query := `SELECT ` + progressColumns + ` FROM progress_records`
	where, args := buildFilter(q)
	query += where + ` ORDER BY inserted_at, id`

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select progress records: %w", err)
	}
	defer rows.Close()

	var result []*student.Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate progress records: %w", err)
	}

	return result, nil
}

// Count returns the number of progress records matching the query.
func (s *ProgressStore) Count(ctx context.Context, q repository.Query) (int, error) {
	query := `SELECT COUNT(*) FROM progress_records`
	where, args := buildFilter(q)

	var count int
	if err := s.conn.QueryRow(ctx, query+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count progress records: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

// Apply commits a change batch inside a single transaction.
func (s *ProgressStore) Apply(ctx context.Context, changes []repository.Change[*student.Progress]) error {
	if len(changes) == 0 {
		return nil
	}

	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, ch := range changes {
			var err error
			switch ch.Kind {
			case repository.ChangeInsert:
				err = insertProgress(ctx, tx, ch.Entity)
			case repository.ChangeUpdate:
				err = updateProgress(ctx, tx, ch.Entity)
			default:
				err = shared.NewDomainError("progress", "Apply", shared.ErrInvalidInput,
					fmt.Sprintf("unknown change kind %d", ch.Kind))
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func insertProgress(ctx context.Context, tx pgx.Tx, p *student.Progress) error {
	query := `
		INSERT INTO progress_records (` + progressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := tx.Exec(ctx, query,
		p.ID,
		p.StudentID,
		p.Subject,
		p.CompletionPercent,
		p.PerformanceScore,
		timeutil.Minutes(p.TimeSpent),
		p.LastActivity,
		p.IsDeleted,
		p.InsertedAt,
		p.UpdatedAt,
		p.InsertedBy,
		p.UpdatedBy,
		nullableTenant(p.TenantID),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("progress", "Apply", shared.ErrConstraint,
				fmt.Sprintf("progress record %s already exists", p.ID))
		}
		if IsForeignKeyViolation(err) {
			return shared.NewDomainError("progress", "Apply", shared.ErrConstraint,
				fmt.Sprintf("student %s does not exist", p.StudentID))
		}
		return fmt.Errorf("failed to insert progress record: %w", err)
	}
	return nil
}

func updateProgress(ctx context.Context, tx pgx.Tx, p *student.Progress) error {
	query := `
		UPDATE progress_records SET
			student_id = $2, subject = $3, completion_percent = $4,
			performance_score = $5, time_spent_minutes = $6, last_activity = $7,
			is_deleted = $8, updated_at = $9, updated_by = $10
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query,
		p.ID,
		p.StudentID,
		p.Subject,
		p.CompletionPercent,
		p.PerformanceScore,
		timeutil.Minutes(p.TimeSpent),
		p.LastActivity,
		p.IsDeleted,
		p.UpdatedAt,
		p.UpdatedBy,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.NewDomainError("progress", "Apply", shared.ErrConstraint,
				fmt.Sprintf("student %s does not exist", p.StudentID))
		}
		return fmt.Errorf("failed to update progress record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("progress", "Apply", shared.ErrConstraint,
			fmt.Sprintf("progress record %s does not exist", p.ID))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanProgress(row pgx.Row) (*student.Progress, error) {
	var p student.Progress
	var minutes float64
	var tenantID *string

	err := row.Scan(
		&p.ID,
		&p.StudentID,
		&p.Subject,
		&p.CompletionPercent,
		&p.PerformanceScore,
		&minutes,
		&p.LastActivity,
		&p.IsDeleted,
		&p.InsertedAt,
		&p.UpdatedAt,
		&p.InsertedBy,
		&p.UpdatedBy,
		&tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan progress record: %w", err)
	}

	p.TimeSpent = timeutil.FromMinutes(minutes)
	if tenantID != nil {
		p.TenantID = *tenantID
	}
	p.LastActivity = p.LastActivity.UTC()
	p.InsertedAt = p.InsertedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()

	return &p, nil
}
