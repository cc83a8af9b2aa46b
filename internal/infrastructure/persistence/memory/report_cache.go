package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/schoolhub/progress-hub/internal/domain/analytics"
	"github.com/schoolhub/progress-hub/internal/domain/shared"
	"github.com/schoolhub/progress-hub/internal/domain/tenant"
)

// ReportCache is a process-wide in-memory analytics.ReportCache.
// Entries are serialized to JSON on write, so repeated reads of a cached
// report return byte-for-byte identical values regardless of later changes
// to the underlying data. Expired entries are evicted lazily on access
// and swept opportunistically on writes.
type ReportCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	clock   func() time.Time
}

type cacheEntry struct {
	payload []byte

	// absoluteDeadline caps the entry lifetime regardless of reads.
	absoluteDeadline time.Time

	// slidingDeadline moves forward on each read, never past the cap.
	// Zero when the policy has no sliding component.
	slidingDeadline time.Time
	slidingTTL      time.Duration
}

// NewReportCache creates an empty report cache using the wall clock.
func NewReportCache() *ReportCache {
	return NewReportCacheWithClock(func() time.Time { return time.Now().UTC() })
}

// NewReportCacheWithClock creates a report cache with an injectable clock.
func NewReportCacheWithClock(clock func() time.Time) *ReportCache {
	return &ReportCache{
		entries: make(map[string]*cacheEntry),
		clock:   clock,
	}
}

// entryKey scopes the report key by tenant so tenants never observe each
// other's reports.
func entryKey(ctx context.Context, key string) string {
	if scope, ok := tenant.FromContext(ctx); ok && scope.TenantID != "" {
		return scope.TenantID + ":" + key
	}
	return key
}

// Get reads a cached report into dest. A miss or an expired entry returns
// false without error. A hit renews the sliding deadline up to the cap.
func (c *ReportCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	key = entryKey(ctx, key)
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return false, nil
	}

	now := c.clock()
	if entry.expired(now) {
		delete(c.entries, key)
		c.mu.Unlock()
		return false, nil
	}

	if entry.slidingTTL > 0 {
		renewed := now.Add(entry.slidingTTL)
		if renewed.After(entry.absoluteDeadline) {
			renewed = entry.absoluteDeadline
		}
		entry.slidingDeadline = renewed
	}
	payload := entry.payload
	c.mu.Unlock()

	if err := json.Unmarshal(payload, dest); err != nil {
		return false, shared.WrapError("memory", "Get", shared.ErrComputation,
			fmt.Sprintf("corrupt cache entry %q", key), err)
	}
	return true, nil
}

// Set stores a report under the key with the given expiration policy.
func (c *ReportCache) Set(ctx context.Context, key string, value any, policy analytics.Policy) error {
	if policy.AbsoluteTTL <= 0 {
		return shared.NewDomainError("memory", "Set", shared.ErrInvalidInput,
			"absolute TTL must be positive")
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return shared.WrapError("memory", "Set", shared.ErrComputation,
			fmt.Sprintf("cannot serialize cache entry %q", key), err)
	}

	now := c.clock()
	key = entryKey(ctx, key)
	entry := &cacheEntry{
		payload:          payload,
		absoluteDeadline: now.Add(policy.AbsoluteTTL),
		slidingTTL:       policy.SlidingTTL,
	}
	if policy.SlidingTTL > 0 {
		entry.slidingDeadline = now.Add(policy.SlidingTTL)
		if entry.slidingDeadline.After(entry.absoluteDeadline) {
			entry.slidingDeadline = entry.absoluteDeadline
		}
	}

	c.mu.Lock()
	c.sweepLocked(now)
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

// sweepLocked drops expired entries. Writes are rare compared to reads,
// so sweeping here keeps the map bounded without a background goroutine.
// Caller holds the lock.
func (c *ReportCache) sweepLocked(now time.Time) {
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
		}
	}
}

// Delete removes a cache entry.
func (c *ReportCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, entryKey(ctx, key))
	c.mu.Unlock()
	return nil
}

// Len returns the number of entries. Expired entries linger until the
// next read touching them or the next write's sweep.
func (c *ReportCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (e *cacheEntry) expired(now time.Time) bool {
	if now.After(e.absoluteDeadline) {
		return true
	}
	if e.slidingTTL > 0 && now.After(e.slidingDeadline) {
		return true
	}
	return false
}
