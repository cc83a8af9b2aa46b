// Package jobs contains implementations of scheduled jobs for Progress Hub.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/schoolhub/progress-hub/internal/application/query"
	"github.com/schoolhub/progress-hub/internal/domain/shared"
	"github.com/schoolhub/progress-hub/internal/domain/tenant"
)

// scopedContext attaches a tenant scope for warming runs. The warmer acts
// as a system actor, not on behalf of a user.
func scopedContext(ctx context.Context, tenantID string) context.Context {
	if tenantID == "" {
		return ctx
	}
	return tenant.WithScope(ctx, tenant.Scope{TenantID: tenantID, ActorID: "report-warmer"})
}

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH REPORTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RefreshReportsJob warms the analytics report cache by running both report
// queries ahead of their TTLs. Interactive reads then land on warm entries
// instead of paying for recomputation.
type RefreshReportsJob struct {
	classSummary   *query.GetClassSummaryHandler
	progressTrends *query.GetProgressTrendsHandler
	logger         *slog.Logger

	config RefreshReportsConfig

	lastRunStats atomic.Value // *RefreshStats
}

// RefreshReportsConfig contains configuration for the refresh job.
type RefreshReportsConfig struct {
	// Timeout is the maximum duration for one refresh run.
	Timeout time.Duration

	// Tenants lists the tenant scopes to warm (empty = unscoped run).
	Tenants []string

	// SkipClassSummary disables warming the class summary report.
	SkipClassSummary bool

	// SkipProgressTrends disables warming the progress trends report.
	SkipProgressTrends bool
}

// DefaultRefreshReportsConfig returns sensible defaults.
func DefaultRefreshReportsConfig() RefreshReportsConfig {
	return RefreshReportsConfig{
		Timeout: 2 * time.Minute,
	}
}

// RefreshStats contains statistics from a refresh run.
type RefreshStats struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	ReportsWarmed  int
	ReportsFailed  int
	TenantsCovered int
}

// NewRefreshReportsJob creates a new RefreshReportsJob.
func NewRefreshReportsJob(
	classSummary *query.GetClassSummaryHandler,
	progressTrends *query.GetProgressTrendsHandler,
	logger *slog.Logger,
	config RefreshReportsConfig,
) *RefreshReportsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultRefreshReportsConfig().Timeout
	}
	return &RefreshReportsJob{
		classSummary:   classSummary,
		progressTrends: progressTrends,
		logger:         logger,
		config:         config,
	}
}

// Name returns the unique job name.
func (j *RefreshReportsJob) Name() string {
	return "refresh_reports"
}

// Description returns a human-readable description.
func (j *RefreshReportsJob) Description() string {
	return "Warms the class summary and progress trends report caches"
}

// Run executes the refresh job.
func (j *RefreshReportsJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	stats := &RefreshStats{StartedAt: time.Now().UTC()}

	scopes := j.config.Tenants
	if len(scopes) == 0 {
		scopes = []string{""}
	}
	stats.TenantsCovered = len(scopes)

	for _, tenantID := range scopes {
		runCtx := scopedContext(ctx, tenantID)

		if !j.config.SkipClassSummary {
			if err := j.warmClassSummary(runCtx); err != nil {
				stats.ReportsFailed++
				j.logger.Error("class summary warmup failed",
					slog.String("tenant_id", tenantID),
					slog.String("error", err.Error()))
			} else {
				stats.ReportsWarmed++
			}
		}

		if !j.config.SkipProgressTrends {
			if err := j.warmProgressTrends(runCtx); err != nil {
				stats.ReportsFailed++
				j.logger.Error("progress trends warmup failed",
					slog.String("tenant_id", tenantID),
					slog.String("error", err.Error()))
			} else {
				stats.ReportsWarmed++
			}
		}
	}

	stats.CompletedAt = time.Now().UTC()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("report warmup completed",
		slog.Int("warmed", stats.ReportsWarmed),
		slog.Int("failed", stats.ReportsFailed),
		slog.Duration("duration", stats.Duration))

	if stats.ReportsFailed > 0 {
		return fmt.Errorf("refresh_reports: %d of %d reports failed",
			stats.ReportsFailed, stats.ReportsWarmed+stats.ReportsFailed)
	}
	return nil
}

// LastRunStats returns statistics from the most recent run, or nil.
func (j *RefreshReportsJob) LastRunStats() *RefreshStats {
	stats, _ := j.lastRunStats.Load().(*RefreshStats)
	return stats
}

func (j *RefreshReportsJob) warmClassSummary(ctx context.Context) error {
	_, err := j.classSummary.Handle(ctx, query.GetClassSummaryQuery{
		Page: shared.PageRequest{PageNumber: 1, PageSize: 1},
	})
	return err
}

func (j *RefreshReportsJob) warmProgressTrends(ctx context.Context) error {
	_, err := j.progressTrends.Handle(ctx, query.GetProgressTrendsQuery{
		Page: shared.PageRequest{PageNumber: 1, PageSize: 1},
	})
	return err
}
