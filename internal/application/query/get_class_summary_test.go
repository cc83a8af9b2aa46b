package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schoolhub/progress-hub/internal/domain/analytics"
)

// recordingCache remembers the policy of the last Set call.
type recordingCache struct {
	analytics.ReportCache
	lastPolicy analytics.Policy
}

func (c *recordingCache) Set(ctx context.Context, key string, value any, policy analytics.Policy) error {
	c.lastPolicy = policy
	return c.ReportCache.Set(ctx, key, value, policy)
}

func TestGetClassSummary_AveragesOverAllRecordsInGrade(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Grade A: two students, three records in total.
	s1 := env.addStudent(t, "Aigerim", "A")
	env.addProgress(t, s1.ID, "math", 80, now)
	env.addProgress(t, s1.ID, "physics", 90, now)
	s2 := env.addStudent(t, "Dias", "A")
	env.addProgress(t, s2.ID, "math", 70, now)

	// Grade B: a single record.
	s3 := env.addStudent(t, "Madina", "B")
	env.addProgress(t, s3.ID, "math", 100, now)

	handler := NewGetClassSummaryHandler(env.students, env.cache, nil)
	result, err := handler.Handle(env.ctx, GetClassSummaryQuery{})

	assert.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, 2, result.TotalCount)
	if assert.Len(t, result.Groups, 2) {
		gradeA := result.Groups[0]
		assert.Equal(t, "A", gradeA.Grade)
		assert.Equal(t, 2, gradeA.StudentCount)
		assert.InDelta(t, 80.0, gradeA.AvgCompletion, 1e-9)
		assert.InDelta(t, 30.0, gradeA.AvgTimeSpentMinutes, 1e-9)

		gradeB := result.Groups[1]
		assert.Equal(t, "B", gradeB.Grade)
		assert.Equal(t, 1, gradeB.StudentCount)
		assert.InDelta(t, 100.0, gradeB.AvgCompletion, 1e-9)
	}
}

func TestGetClassSummary_SkipsGradeWithoutProgress(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s1 := env.addStudent(t, "Aigerim", "A")
	env.addProgress(t, s1.ID, "math", 80, now)
	env.addStudent(t, "Dias", "C")

	handler := NewGetClassSummaryHandler(env.students, env.cache, nil)
	result, err := handler.Handle(env.ctx, GetClassSummaryQuery{})

	assert.NoError(t, err)
	assert.Equal(t, 1, result.TotalCount)
	if assert.Len(t, result.Groups, 1) {
		assert.Equal(t, "A", result.Groups[0].Grade)
	}
}

func TestGetClassSummary_SecondReadComesFromCache(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s1 := env.addStudent(t, "Aigerim", "A")
	env.addProgress(t, s1.ID, "math", 80, now)

	handler := NewGetClassSummaryHandler(env.students, env.cache, nil)

	first, err := handler.Handle(env.ctx, GetClassSummaryQuery{})
	assert.NoError(t, err)
	assert.False(t, first.FromCache)

	// Writes after the report was cached do not show up until expiry.
	env.addProgress(t, s1.ID, "physics", 0, now)

	second, err := handler.Handle(env.ctx, GetClassSummaryQuery{})
	assert.NoError(t, err)
	assert.True(t, second.FromCache)
	if assert.Len(t, second.Groups, 1) {
		assert.InDelta(t, 80.0, second.Groups[0].AvgCompletion, 1e-9)
	}
}

func TestGetClassSummary_PaginatesGroups(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, grade := range []string{"A", "B", "C"} {
		s := env.addStudent(t, "Student "+grade, grade)
		env.addProgress(t, s.ID, "math", 50, now)
	}

	handler := NewGetClassSummaryHandler(env.students, env.cache, nil)

	page1, err := handler.Handle(env.ctx, GetClassSummaryQuery{
		Page: pageRequest(1, 2),
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, page1.TotalCount)
	assert.Len(t, page1.Groups, 2)
	assert.True(t, page1.HasMore)
	assert.Equal(t, "A", page1.Groups[0].Grade)
	assert.Equal(t, "B", page1.Groups[1].Grade)

	page2, err := handler.Handle(env.ctx, GetClassSummaryQuery{
		Page: pageRequest(2, 2),
	})
	assert.NoError(t, err)
	assert.Len(t, page2.Groups, 1)
	assert.False(t, page2.HasMore)
	assert.Equal(t, "C", page2.Groups[0].Grade)

	// The second page was cut from the cached report.
	assert.True(t, page2.FromCache)
}

func TestGetClassSummary_PolicyOverrideReachesCache(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := env.addStudent(t, "Aigerim", "A")
	env.addProgress(t, s.ID, "math", 80, now)

	cache := &recordingCache{ReportCache: env.cache}
	custom := analytics.Policy{AbsoluteTTL: 30 * time.Minute, SlidingTTL: 5 * time.Minute}
	handler := NewGetClassSummaryHandler(env.students, cache, nil).WithPolicy(custom)

	_, err := handler.Handle(env.ctx, GetClassSummaryQuery{})
	assert.NoError(t, err)
	assert.Equal(t, custom, cache.lastPolicy)

	// A zero policy does not silently disable caching.
	handler.WithPolicy(analytics.Policy{})
	assert.Equal(t, custom, handler.policy)
}

func TestGetClassSummary_EmptyPlatform(t *testing.T) {
	env := newTestEnv(t)

	handler := NewGetClassSummaryHandler(env.students, env.cache, nil)
	result, err := handler.Handle(env.ctx, GetClassSummaryQuery{})

	assert.NoError(t, err)
	assert.Empty(t, result.Groups)
	assert.Equal(t, 0, result.TotalCount)
	assert.False(t, result.HasMore)
}
