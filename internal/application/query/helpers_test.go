package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schoolhub/progress-hub/internal/domain/repository"
	"github.com/schoolhub/progress-hub/internal/domain/shared"
	"github.com/schoolhub/progress-hub/internal/domain/student"
	"github.com/schoolhub/progress-hub/internal/domain/tenant"
	"github.com/schoolhub/progress-hub/internal/infrastructure/persistence/memory"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test fixtures
// ─────────────────────────────────────────────────────────────────────────────

func cloneStudent(s *student.Student) *student.Student {
	copied := *s
	if s.ProgressRecords != nil {
		copied.ProgressRecords = make([]*student.Progress, len(s.ProgressRecords))
		for i, p := range s.ProgressRecords {
			record := *p
			copied.ProgressRecords[i] = &record
		}
	}
	return &copied
}

func cloneProgress(p *student.Progress) *student.Progress {
	copied := *p
	return &copied
}

// testEnv wires in-memory repositories with the eager progress relation,
// mirroring the production wiring.
type testEnv struct {
	students *student.Repository
	progress *student.ProgressRepository
	cache    *memory.ReportCache
	ctx      context.Context

	// now drives the repository clock, so audit timestamps are test-controlled.
	now time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	studentStore := memory.NewStore[*student.Student](cloneStudent)
	progressStore := memory.NewStore[*student.Progress](cloneProgress)

	opts := repository.Options{Clock: func() time.Time { return env.now }}
	students := student.NewRepository(studentStore, opts)
	progress := student.NewProgressRepository(progressStore, opts)

	studentStore.RegisterRelation(student.RelationProgress,
		func(ctx context.Context, items []*student.Student) error {
			for _, s := range items {
				records, err := progress.Find(ctx, func(p *student.Progress) bool {
					return p.StudentID == s.ID
				})
				if err != nil {
					return err
				}
				s.ProgressRecords = records
			}
			return nil
		})

	env.students = students
	env.progress = progress
	env.cache = memory.NewReportCache()
	env.ctx = tenant.WithScope(context.Background(), tenant.Scope{TenantID: "school-1", ActorID: "teacher-1"})
	return env
}

func (e *testEnv) addStudent(t *testing.T, fullName, grade string) *student.Student {
	t.Helper()

	s := &student.Student{FullName: fullName, Grade: grade}
	assert.NoError(t, e.students.Add(e.ctx, s))
	assert.NoError(t, e.students.Save(e.ctx))
	return s
}

// addProgress records a progress entry inserted at the given moment.
func (e *testEnv) addProgress(t *testing.T, studentID, subject string, completion float64, insertedAt time.Time) *student.Progress {
	t.Helper()

	e.now = insertedAt
	p := &student.Progress{
		Subject:           subject,
		CompletionPercent: completion,
		PerformanceScore:  completion,
		TimeSpent:         30 * time.Minute,
		LastActivity:      insertedAt,
		StudentID:         studentID,
	}
	assert.NoError(t, e.progress.Add(e.ctx, p))
	assert.NoError(t, e.progress.Save(e.ctx))
	return p
}

func pageRequest(number, size int) shared.PageRequest {
	return shared.PageRequest{PageNumber: number, PageSize: size}
}
