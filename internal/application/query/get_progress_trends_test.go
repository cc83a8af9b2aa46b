package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func trendsHandlerAt(env *testEnv, now time.Time) *GetProgressTrendsHandler {
	handler := NewGetProgressTrendsHandler(env.students, env.cache, nil)
	handler.clock = func() time.Time { return now }
	return handler
}

func TestGetProgressTrends_GroupsByCalendarMonth(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	s := env.addStudent(t, "Aigerim", "A")
	env.addProgress(t, s.ID, "math", 40, time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC))
	env.addProgress(t, s.ID, "physics", 60, time.Date(2026, 2, 20, 10, 0, 0, 0, time.UTC))
	env.addProgress(t, s.ID, "math", 90, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	handler := trendsHandlerAt(env, now)
	result, err := handler.Handle(env.ctx, GetProgressTrendsQuery{})

	assert.NoError(t, err)
	assert.Equal(t, 2, result.TotalCount)
	if assert.Len(t, result.Trends, 2) {
		feb := result.Trends[0]
		assert.Equal(t, "2026-02", feb.Period)
		assert.InDelta(t, 50.0, feb.AvgCompletion, 1e-9)
		assert.Equal(t, 2, feb.RecordCount)

		mar := result.Trends[1]
		assert.Equal(t, "2026-03", mar.Period)
		assert.InDelta(t, 90.0, mar.AvgCompletion, 1e-9)
		assert.Equal(t, 1, mar.RecordCount)
	}
}

func TestGetProgressTrends_ExcludesRecordsOutsideWindow(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	s := env.addStudent(t, "Aigerim", "A")

	// Seven months old: outside the trailing six-month window.
	env.addProgress(t, s.ID, "math", 10, time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC))

	// One month old: inside the window.
	env.addProgress(t, s.ID, "math", 50, time.Date(2026, 7, 20, 10, 0, 0, 0, time.UTC))

	handler := trendsHandlerAt(env, now)
	result, err := handler.Handle(env.ctx, GetProgressTrendsQuery{})

	assert.NoError(t, err)
	if assert.Len(t, result.Trends, 1) {
		assert.Equal(t, "2026-07", result.Trends[0].Period)
		assert.InDelta(t, 50.0, result.Trends[0].AvgCompletion, 1e-9)
		assert.Equal(t, 1, result.Trends[0].RecordCount)
	}
}

func TestGetProgressTrends_PeriodsInChronologicalOrder(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	s := env.addStudent(t, "Aigerim", "A")
	env.addProgress(t, s.ID, "math", 30, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	env.addProgress(t, s.ID, "math", 20, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	env.addProgress(t, s.ID, "math", 10, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	handler := trendsHandlerAt(env, now)
	result, err := handler.Handle(env.ctx, GetProgressTrendsQuery{})

	assert.NoError(t, err)
	periods := make([]string, 0, len(result.Trends))
	for _, trend := range result.Trends {
		periods = append(periods, trend.Period)
	}
	assert.Equal(t, []string{"2026-02", "2026-04", "2026-05"}, periods)
}

func TestGetProgressTrends_ExcludesRemovedStudentsRecords(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	kept := env.addStudent(t, "Aigerim", "A")
	removed := env.addStudent(t, "Dias", "A")
	env.addProgress(t, kept.ID, "math", 40, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	env.addProgress(t, removed.ID, "math", 100, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	// The student is soft deleted directly, without the progress cascade.
	// Their records must not leak into the report anyway.
	assert.NoError(t, env.students.Delete(env.ctx, removed.ID))
	assert.NoError(t, env.students.Save(env.ctx))

	handler := trendsHandlerAt(env, now)
	result, err := handler.Handle(env.ctx, GetProgressTrendsQuery{})

	assert.NoError(t, err)
	if assert.Len(t, result.Trends, 1) {
		assert.InDelta(t, 40.0, result.Trends[0].AvgCompletion, 1e-9)
		assert.Equal(t, 1, result.Trends[0].RecordCount)
	}
}

func TestGetProgressTrends_WindowOverrideNarrowsReport(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	s := env.addStudent(t, "Aigerim", "A")
	env.addProgress(t, s.ID, "math", 20, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	env.addProgress(t, s.ID, "math", 80, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))

	handler := trendsHandlerAt(env, now).WithTrendWindow(1)
	result, err := handler.Handle(env.ctx, GetProgressTrendsQuery{})

	assert.NoError(t, err)
	if assert.Len(t, result.Trends, 1) {
		assert.Equal(t, "2026-06", result.Trends[0].Period)
		assert.InDelta(t, 80.0, result.Trends[0].AvgCompletion, 1e-9)
	}
}

func TestGetProgressTrends_SecondReadComesFromCache(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	s := env.addStudent(t, "Aigerim", "A")
	env.addProgress(t, s.ID, "math", 40, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	handler := trendsHandlerAt(env, now)

	first, err := handler.Handle(env.ctx, GetProgressTrendsQuery{})
	assert.NoError(t, err)
	assert.False(t, first.FromCache)

	env.addProgress(t, s.ID, "math", 100, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))

	second, err := handler.Handle(env.ctx, GetProgressTrendsQuery{})
	assert.NoError(t, err)
	assert.True(t, second.FromCache)
	if assert.Len(t, second.Trends, 1) {
		assert.InDelta(t, 40.0, second.Trends[0].AvgCompletion, 1e-9)
		assert.Equal(t, 1, second.Trends[0].RecordCount)
	}
}

func TestGetProgressTrends_EmptyWindow(t *testing.T) {
	env := newTestEnv(t)
	handler := trendsHandlerAt(env, time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))

	result, err := handler.Handle(env.ctx, GetProgressTrendsQuery{})

	assert.NoError(t, err)
	assert.Empty(t, result.Trends)
	assert.Equal(t, 0, result.TotalCount)
}
