package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetStudents_ListPaginated(t *testing.T) {
	env := newTestEnv(t)

	for _, name := range []string{"Aigerim", "Dias", "Madina"} {
		env.addStudent(t, name, "7A")
	}

	handler := NewGetStudentsHandler(env.students)
	result, err := handler.Handle(env.ctx, GetStudentsQuery{Page: pageRequest(1, 2)})

	assert.NoError(t, err)
	assert.Equal(t, 3, result.TotalCount)
	assert.Len(t, result.Students, 2)
	assert.True(t, result.HasMore)

	// Insertion order is the listing order.
	assert.Equal(t, "Aigerim", result.Students[0].FullName)
	assert.Equal(t, "Dias", result.Students[1].FullName)
}

func TestGetStudents_SingleWithProgress(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := env.addStudent(t, "Aigerim", "7A")
	env.addProgress(t, s.ID, "math", 80, now)

	handler := NewGetStudentsHandler(env.students)
	result, err := handler.Handle(env.ctx, GetStudentsQuery{
		StudentID:    s.ID,
		WithProgress: true,
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, result.TotalCount)
	if assert.Len(t, result.Students, 1) {
		dto := result.Students[0]
		assert.Equal(t, s.ID, dto.ID)
		if assert.Len(t, dto.Progress, 1) {
			assert.Equal(t, "math", dto.Progress[0].Subject)
			assert.InDelta(t, 30.0, dto.Progress[0].TimeSpentMinutes, 1e-9)
		}
	}
}

func TestGetStudents_SingleWithoutProgressOmitsRecords(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := env.addStudent(t, "Aigerim", "7A")
	env.addProgress(t, s.ID, "math", 80, now)

	handler := NewGetStudentsHandler(env.students)
	result, err := handler.Handle(env.ctx, GetStudentsQuery{StudentID: s.ID})

	assert.NoError(t, err)
	if assert.Len(t, result.Students, 1) {
		assert.Empty(t, result.Students[0].Progress)
	}
}

func TestGetStudents_SingleMissingGivesEmptyResult(t *testing.T) {
	env := newTestEnv(t)

	handler := NewGetStudentsHandler(env.students)
	result, err := handler.Handle(env.ctx, GetStudentsQuery{StudentID: "no-such-student"})

	assert.NoError(t, err)
	assert.Empty(t, result.Students)
	assert.Equal(t, 0, result.TotalCount)
}

func TestGetStudents_PageSizeClamped(t *testing.T) {
	env := newTestEnv(t)
	env.addStudent(t, "Aigerim", "7A")

	handler := NewGetStudentsHandler(env.students)
	result, err := handler.Handle(env.ctx, GetStudentsQuery{Page: pageRequest(1, 500)})

	assert.NoError(t, err)
	assert.Equal(t, 100, result.PageSize)
}
