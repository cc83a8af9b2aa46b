package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schoolhub/progress-hub/internal/application/query"
	"github.com/schoolhub/progress-hub/internal/domain/repository"
	"github.com/schoolhub/progress-hub/internal/domain/student"
	"github.com/schoolhub/progress-hub/internal/infrastructure/persistence/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

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

// warmEnv wires the report handlers over in-memory storage with one student
// and one fresh progress record, so a warming run has something to compute.
type warmEnv struct {
	classSummary   *query.GetClassSummaryHandler
	progressTrends *query.GetProgressTrendsHandler
	cache          *memory.ReportCache
}

func newWarmEnv(t *testing.T) *warmEnv {
	t.Helper()

	studentStore := memory.NewStore[*student.Student](cloneStudent)
	progressStore := memory.NewStore[*student.Progress](cloneProgress)

	opts := repository.Options{}
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

	// Seeded without a tenant scope: the default warming run is unscoped too,
	// so the warmed cache entry and the later read share a key.
	ctx := context.Background()
	s := &student.Student{FullName: "Aigerim", Grade: "7A"}
	assert.NoError(t, students.Add(ctx, s))
	assert.NoError(t, students.Save(ctx))

	assert.NoError(t, progress.Add(ctx, &student.Progress{
		Subject:           "math",
		CompletionPercent: 80,
		PerformanceScore:  80,
		TimeSpent:         30 * time.Minute,
		LastActivity:      time.Now().UTC(),
		StudentID:         s.ID,
	}))
	assert.NoError(t, progress.Save(ctx))

	cache := memory.NewReportCache()
	return &warmEnv{
		classSummary:   query.NewGetClassSummaryHandler(students, cache, nil),
		progressTrends: query.NewGetProgressTrendsHandler(students, cache, nil),
		cache:          cache,
	}
}

func TestRefreshReportsJob_RunWarmsBothReports(t *testing.T) {
	env := newWarmEnv(t)
	job := NewRefreshReportsJob(env.classSummary, env.progressTrends, discardLogger(),
		RefreshReportsConfig{})

	assert.NoError(t, job.Run(context.Background()))

	stats := job.LastRunStats()
	if assert.NotNil(t, stats) {
		assert.Equal(t, 2, stats.ReportsWarmed)
		assert.Equal(t, 0, stats.ReportsFailed)
		assert.Equal(t, 1, stats.TenantsCovered)
	}

	// Interactive reads after a warming run land on the cache.
	summary, err := env.classSummary.Handle(context.Background(), query.GetClassSummaryQuery{})
	assert.NoError(t, err)
	assert.True(t, summary.FromCache)

	trends, err := env.progressTrends.Handle(context.Background(), query.GetProgressTrendsQuery{})
	assert.NoError(t, err)
	assert.True(t, trends.FromCache)
}

func TestRefreshReportsJob_SkipFlagsLimitWarming(t *testing.T) {
	env := newWarmEnv(t)
	job := NewRefreshReportsJob(env.classSummary, env.progressTrends, discardLogger(),
		RefreshReportsConfig{SkipClassSummary: true})

	assert.NoError(t, job.Run(context.Background()))

	stats := job.LastRunStats()
	if assert.NotNil(t, stats) {
		assert.Equal(t, 1, stats.ReportsWarmed)
	}
}

func TestNewRefreshReportsJob_ZeroTimeoutKeepsOtherSettings(t *testing.T) {
	job := NewRefreshReportsJob(nil, nil, discardLogger(), RefreshReportsConfig{
		Tenants:            []string{"school-1", "school-2"},
		SkipClassSummary:   true,
		SkipProgressTrends: true,
	})

	assert.Equal(t, DefaultRefreshReportsConfig().Timeout, job.config.Timeout)
	assert.Equal(t, []string{"school-1", "school-2"}, job.config.Tenants)
	assert.True(t, job.config.SkipClassSummary)
	assert.True(t, job.config.SkipProgressTrends)
}
