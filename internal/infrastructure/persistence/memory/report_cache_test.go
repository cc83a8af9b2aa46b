package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schoolhub/progress-hub/internal/domain/analytics"
	"github.com/schoolhub/progress-hub/internal/domain/tenant"
)

// movableClock is a manually advanced clock for expiration tests.
type movableClock struct {
	now time.Time
}

func (c *movableClock) Now() time.Time { return c.now }

func (c *movableClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestReportCache() (*ReportCache, *movableClock) {
	clock := &movableClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewReportCacheWithClock(clock.Now), clock
}

type testReport struct {
	Value string `json:"value"`
}

func TestReportCache_MissOnEmpty(t *testing.T) {
	cache, _ := newTestReportCache()

	var dest testReport
	hit, err := cache.Get(context.Background(), analytics.KeyClassSummary, &dest)
	assert.NoError(t, err)
	assert.False(t, hit)
}

func TestReportCache_HitWithinTTL(t *testing.T) {
	cache, clock := newTestReportCache()
	ctx := context.Background()

	assert.NoError(t, cache.Set(ctx, analytics.KeyClassSummary,
		testReport{Value: "v1"}, analytics.ClassSummaryPolicy()))

	clock.Advance(time.Minute)

	var dest testReport
	hit, err := cache.Get(ctx, analytics.KeyClassSummary, &dest)
	assert.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "v1", dest.Value)
}

func TestReportCache_SlidingRenewalOnRead(t *testing.T) {
	cache, clock := newTestReportCache()
	ctx := context.Background()

	// 2m sliding under a 10m absolute cap.
	assert.NoError(t, cache.Set(ctx, analytics.KeyClassSummary,
		testReport{Value: "v1"}, analytics.ClassSummaryPolicy()))

	var dest testReport
	for i := 0; i < 4; i++ {
		clock.Advance(90 * time.Second)
		hit, err := cache.Get(ctx, analytics.KeyClassSummary, &dest)
		assert.NoError(t, err)
		assert.True(t, hit, "read %d should renew the sliding window", i)
	}

	// Without a renewing read the sliding window lapses.
	clock.Advance(3 * time.Minute)
	hit, err := cache.Get(ctx, analytics.KeyClassSummary, &dest)
	assert.NoError(t, err)
	assert.False(t, hit)
}

func TestReportCache_AbsoluteCapBeatsSlidingRenewal(t *testing.T) {
	cache, clock := newTestReportCache()
	ctx := context.Background()

	assert.NoError(t, cache.Set(ctx, analytics.KeyClassSummary,
		testReport{Value: "v1"}, analytics.ClassSummaryPolicy()))

	// Keep reading every 90s so the sliding window never lapses.
	var dest testReport
	for i := 0; i < 6; i++ {
		clock.Advance(90 * time.Second)
		hit, err := cache.Get(ctx, analytics.KeyClassSummary, &dest)
		assert.NoError(t, err)
		assert.True(t, hit)
	}

	// 9m elapsed; the next step crosses the 10m absolute deadline.
	clock.Advance(90 * time.Second)
	hit, err := cache.Get(ctx, analytics.KeyClassSummary, &dest)
	assert.NoError(t, err)
	assert.False(t, hit)
}

func TestReportCache_AbsoluteOnlyPolicy(t *testing.T) {
	cache, clock := newTestReportCache()
	ctx := context.Background()

	assert.NoError(t, cache.Set(ctx, analytics.KeyProgressTrends,
		testReport{Value: "v1"}, analytics.ProgressTrendsPolicy()))

	var dest testReport

	// No sliding component: idle time short of the cap never expires it.
	clock.Advance(9 * time.Minute)
	hit, err := cache.Get(ctx, analytics.KeyProgressTrends, &dest)
	assert.NoError(t, err)
	assert.True(t, hit)

	clock.Advance(2 * time.Minute)
	hit, err = cache.Get(ctx, analytics.KeyProgressTrends, &dest)
	assert.NoError(t, err)
	assert.False(t, hit)
}

func TestReportCache_RejectsZeroAbsoluteTTL(t *testing.T) {
	cache, _ := newTestReportCache()

	err := cache.Set(context.Background(), "k", testReport{}, analytics.Policy{SlidingTTL: time.Minute})
	assert.Error(t, err)
}

func TestReportCache_SnapshotIsolation(t *testing.T) {
	cache, _ := newTestReportCache()
	ctx := context.Background()

	report := &testReport{Value: "original"}
	assert.NoError(t, cache.Set(ctx, "k", report, analytics.ProgressTrendsPolicy()))

	// Mutating the source after Set must not affect cached reads.
	report.Value = "mutated"

	var dest testReport
	hit, err := cache.Get(ctx, "k", &dest)
	assert.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "original", dest.Value)
}

func TestReportCache_TenantScopedKeys(t *testing.T) {
	cache, _ := newTestReportCache()

	ctxA := tenant.WithScope(context.Background(), tenant.Scope{TenantID: "school-a"})
	ctxB := tenant.WithScope(context.Background(), tenant.Scope{TenantID: "school-b"})

	assert.NoError(t, cache.Set(ctxA, analytics.KeyClassSummary,
		testReport{Value: "a"}, analytics.ClassSummaryPolicy()))

	var dest testReport
	hit, err := cache.Get(ctxB, analytics.KeyClassSummary, &dest)
	assert.NoError(t, err)
	assert.False(t, hit)

	hit, err = cache.Get(ctxA, analytics.KeyClassSummary, &dest)
	assert.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "a", dest.Value)
}

func TestReportCache_Delete(t *testing.T) {
	cache, _ := newTestReportCache()
	ctx := context.Background()

	assert.NoError(t, cache.Set(ctx, "k", testReport{Value: "v"}, analytics.ProgressTrendsPolicy()))
	assert.NoError(t, cache.Delete(ctx, "k"))

	var dest testReport
	hit, err := cache.Get(ctx, "k", &dest)
	assert.NoError(t, err)
	assert.False(t, hit)
}
