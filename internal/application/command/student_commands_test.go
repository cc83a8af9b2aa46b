package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schoolhub/progress-hub/internal/domain/repository"
	"github.com/schoolhub/progress-hub/internal/domain/student"
	"github.com/schoolhub/progress-hub/internal/domain/tenant"
	"github.com/schoolhub/progress-hub/internal/infrastructure/persistence/memory"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test fixtures
// ─────────────────────────────────────────────────────────────────────────────

func cloneStudent(s *student.Student) *student.Student {
	copied := *s
	return &copied
}

func cloneProgress(p *student.Progress) *student.Progress {
	copied := *p
	return &copied
}

type testRepos struct {
	students *student.Repository
	progress *student.ProgressRepository
	ctx      context.Context
}

func newTestRepos() *testRepos {
	opts := repository.Options{}
	return &testRepos{
		students: student.NewRepository(memory.NewStore[*student.Student](cloneStudent), opts),
		progress: student.NewProgressRepository(memory.NewStore[*student.Progress](cloneProgress), opts),
		ctx:      tenant.WithScope(context.Background(), tenant.Scope{TenantID: "school-1", ActorID: "teacher-1"}),
	}
}

func (r *testRepos) enroll(t *testing.T, fullName, grade string) string {
	t.Helper()

	handler := NewEnrollStudentHandler(r.students, nil)
	result, err := handler.Handle(r.ctx, EnrollStudentCommand{FullName: fullName, Grade: grade})
	assert.NoError(t, err)
	return result.StudentID
}

// ─────────────────────────────────────────────────────────────────────────────
// EnrollStudent
// ─────────────────────────────────────────────────────────────────────────────

func TestEnrollStudent_AssignsIdentityAndAudit(t *testing.T) {
	repos := newTestRepos()
	handler := NewEnrollStudentHandler(repos.students, nil)

	result, err := handler.Handle(repos.ctx, EnrollStudentCommand{
		FullName: "  Aigerim Seitova  ",
		Grade:    "7A",
	})

	assert.NoError(t, err)
	assert.NotEmpty(t, result.StudentID)
	assert.False(t, result.EnrolledAt.IsZero())

	stored, err := repos.students.GetByID(repos.ctx, result.StudentID)
	assert.NoError(t, err)
	if assert.NotNil(t, stored) {
		assert.Equal(t, "Aigerim Seitova", stored.FullName)
		assert.Equal(t, "7A", stored.Grade)
		assert.Equal(t, "school-1", stored.TenantID)
	}
}

func TestEnrollStudent_RejectsBlankName(t *testing.T) {
	repos := newTestRepos()
	handler := NewEnrollStudentHandler(repos.students, nil)

	_, err := handler.Handle(repos.ctx, EnrollStudentCommand{FullName: "   ", Grade: "7A"})
	assert.Error(t, err)

	count, err := repos.students.Count(repos.ctx)
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}

// ─────────────────────────────────────────────────────────────────────────────
// UpdateStudent
// ─────────────────────────────────────────────────────────────────────────────

func TestUpdateStudent_UpdatesExistingStudent(t *testing.T) {
	repos := newTestRepos()
	id := repos.enroll(t, "Dias", "8B")

	teacher := "teacher-9"
	handler := NewUpdateStudentHandler(repos.students, nil)
	result, err := handler.Handle(repos.ctx, UpdateStudentCommand{
		StudentID: id,
		FullName:  "Dias Nurlanov",
		Grade:     "8V",
		TeacherID: &teacher,
	})

	assert.NoError(t, err)
	assert.True(t, result.Updated)

	stored, err := repos.students.GetByID(repos.ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, "Dias Nurlanov", stored.FullName)
	assert.Equal(t, "8V", stored.Grade)
	if assert.NotNil(t, stored.TeacherID) {
		assert.Equal(t, "teacher-9", *stored.TeacherID)
	}
}

func TestUpdateStudent_MissingStudentIsNotAnError(t *testing.T) {
	repos := newTestRepos()
	handler := NewUpdateStudentHandler(repos.students, nil)

	result, err := handler.Handle(repos.ctx, UpdateStudentCommand{
		StudentID: "no-such-student",
		FullName:  "Ghost",
		Grade:     "9",
	})

	assert.NoError(t, err)
	assert.False(t, result.Updated)
}

// ─────────────────────────────────────────────────────────────────────────────
// RemoveStudent
// ─────────────────────────────────────────────────────────────────────────────

func TestRemoveStudent_CascadesToProgress(t *testing.T) {
	repos := newTestRepos()
	id := repos.enroll(t, "Dias", "8B")

	recorder := NewRecordProgressHandler(repos.students, repos.progress, nil)
	for _, subject := range []string{"math", "physics"} {
		_, err := recorder.Handle(repos.ctx, RecordProgressCommand{
			StudentID: id, Subject: subject, CompletionPercent: 50,
		})
		assert.NoError(t, err)
	}

	handler := NewRemoveStudentHandler(repos.students, repos.progress, nil)
	result, err := handler.Handle(repos.ctx, RemoveStudentCommand{StudentID: id})

	assert.NoError(t, err)
	assert.True(t, result.Removed)
	assert.Equal(t, 2, result.ProgressRemoved)

	stored, err := repos.students.GetByID(repos.ctx, id)
	assert.NoError(t, err)
	assert.Nil(t, stored)

	remaining, err := repos.progress.GetAll(repos.ctx)
	assert.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestRemoveStudent_MissingStudentIsNoOp(t *testing.T) {
	repos := newTestRepos()
	handler := NewRemoveStudentHandler(repos.students, repos.progress, nil)

	result, err := handler.Handle(repos.ctx, RemoveStudentCommand{StudentID: "no-such-student"})

	assert.NoError(t, err)
	assert.False(t, result.Removed)
	assert.Equal(t, 0, result.ProgressRemoved)
}

func TestRemoveStudent_LeavesOtherStudentsProgress(t *testing.T) {
	repos := newTestRepos()
	removed := repos.enroll(t, "Dias", "8B")
	kept := repos.enroll(t, "Madina", "8B")

	recorder := NewRecordProgressHandler(repos.students, repos.progress, nil)
	for _, id := range []string{removed, kept} {
		_, err := recorder.Handle(repos.ctx, RecordProgressCommand{
			StudentID: id, Subject: "math", CompletionPercent: 50,
		})
		assert.NoError(t, err)
	}

	handler := NewRemoveStudentHandler(repos.students, repos.progress, nil)
	_, err := handler.Handle(repos.ctx, RemoveStudentCommand{StudentID: removed})
	assert.NoError(t, err)

	remaining, err := repos.progress.GetAll(repos.ctx)
	assert.NoError(t, err)
	if assert.Len(t, remaining, 1) {
		assert.Equal(t, kept, remaining[0].StudentID)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// RecordProgress
// ─────────────────────────────────────────────────────────────────────────────

func TestRecordProgress_StoresRecordInMinutes(t *testing.T) {
	repos := newTestRepos()
	id := repos.enroll(t, "Dias", "8B")

	lastActivity := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	handler := NewRecordProgressHandler(repos.students, repos.progress, nil)
	result, err := handler.Handle(repos.ctx, RecordProgressCommand{
		StudentID:         id,
		Subject:           "math",
		CompletionPercent: 75,
		PerformanceScore:  80,
		TimeSpentMinutes:  90,
		LastActivity:      lastActivity,
	})

	assert.NoError(t, err)
	assert.True(t, result.Recorded)
	assert.NotEmpty(t, result.ProgressID)

	stored, err := repos.progress.GetByID(repos.ctx, result.ProgressID)
	assert.NoError(t, err)
	if assert.NotNil(t, stored) {
		assert.Equal(t, 90*time.Minute, stored.TimeSpent)
		assert.Equal(t, lastActivity, stored.LastActivity)
		assert.Equal(t, id, stored.StudentID)
	}
}

func TestRecordProgress_MissingStudentIsNotAnError(t *testing.T) {
	repos := newTestRepos()
	handler := NewRecordProgressHandler(repos.students, repos.progress, nil)

	result, err := handler.Handle(repos.ctx, RecordProgressCommand{
		StudentID: "no-such-student",
		Subject:   "math",
	})

	assert.NoError(t, err)
	assert.False(t, result.Recorded)

	count, err := repos.progress.Count(repos.ctx)
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRecordProgress_DefaultsLastActivity(t *testing.T) {
	repos := newTestRepos()
	id := repos.enroll(t, "Dias", "8B")

	handler := NewRecordProgressHandler(repos.students, repos.progress, nil)
	before := time.Now().UTC()
	result, err := handler.Handle(repos.ctx, RecordProgressCommand{
		StudentID: id, Subject: "math",
	})

	assert.NoError(t, err)
	stored, err := repos.progress.GetByID(repos.ctx, result.ProgressID)
	assert.NoError(t, err)
	assert.False(t, stored.LastActivity.Before(before))
}

func TestRecordProgress_RejectsNegativeTime(t *testing.T) {
	repos := newTestRepos()
	id := repos.enroll(t, "Dias", "8B")

	handler := NewRecordProgressHandler(repos.students, repos.progress, nil)
	_, err := handler.Handle(repos.ctx, RecordProgressCommand{
		StudentID: id, Subject: "math", TimeSpentMinutes: -5,
	})

	assert.Error(t, err)
}
