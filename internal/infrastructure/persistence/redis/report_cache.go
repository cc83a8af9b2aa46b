// Package redis implements the Redis-backed report cache for Progress Hub.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/schoolhub/progress-hub/internal/domain/analytics"
	"github.com/schoolhub/progress-hub/internal/domain/tenant"
	"github.com/schoolhub/progress-hub/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORT CACHE
// ══════════════════════════════════════════════════════════════════════════════

// ReportCache implements analytics.ReportCache on top of Redis.
//
// Redis keys expire on the sliding window; the absolute deadline travels
// inside the stored envelope because a renewed key must still die at its
// original absolute time. Every hit re-arms the key's expiry, capped so it
// never outlives the absolute deadline.
//
// All round trips go through a circuit breaker. An open breaker makes Get
// report a miss instead of an error, so reports fall back to recomputation
// while Redis is down.
type ReportCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

// NewReportCache creates a ReportCache over an established connection.
func NewReportCache(cache *Cache, breaker *circuitbreaker.CircuitBreaker) *ReportCache {
	if breaker == nil {
		breaker = circuitbreaker.ReportCacheBreaker(nil)
	}
	return &ReportCache{cache: cache, breaker: breaker}
}

// reportEnvelope is the stored representation of one report entry.
type reportEnvelope struct {
	// Payload is the marshaled report, kept opaque until a hit.
	Payload json.RawMessage `json:"payload"`

	// AbsoluteDeadline is the hard expiry; sliding renewal never crosses it.
	AbsoluteDeadline time.Time `json:"absolute_deadline"`

	// SlidingTTLMillis is the idle window renewed on every hit.
	// Zero means the entry only has the absolute lifetime.
	SlidingTTLMillis int64 `json:"sliding_ttl_ms"`
}

// entryKey scopes the report key by tenant so tenants never observe each
// other's reports.
func entryKey(ctx context.Context, key string) string {
	if scope, ok := tenant.FromContext(ctx); ok {
		return ReportEntryKey(scope.TenantID, key)
	}
	return ReportEntryKey("", key)
}

// Get retrieves a report entry and renews its sliding window.
// Returns (false, nil) on miss, on expiry, and while the breaker is open.
func (r *ReportCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if key == "" {
		return false, ErrCacheKeyEmpty
	}
	redisKey := entryKey(ctx, key)

	var env reportEnvelope
	var found bool

	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		data, err := r.cache.client.Get(ctx, redisKey).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return err
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		found = true
		return nil
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return false, nil
		}
		return false, err
	}
	if !found {
		return false, nil
	}

	now := time.Now().UTC()
	if !now.Before(env.AbsoluteDeadline) {
		// Redis has not evicted it yet, but the entry is stale.
		_ = r.Delete(ctx, key)
		return false, nil
	}

	if env.SlidingTTLMillis > 0 {
		ttl := time.Duration(env.SlidingTTLMillis) * time.Millisecond
		if remaining := env.AbsoluteDeadline.Sub(now); remaining < ttl {
			ttl = remaining
		}
		// Renewal failure is not a miss: the payload is already in hand.
		_ = r.breaker.Execute(ctx, func(ctx context.Context) error {
			return r.cache.client.PExpire(ctx, redisKey, ttl).Err()
		})
	}

	if err := json.Unmarshal(env.Payload, dest); err != nil {
		return false, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return true, nil
}

// Set stores a report entry under the given expiration policy.
// The initial Redis TTL is the sliding window (or the absolute lifetime when
// no sliding window is configured), capped by the absolute lifetime.
func (r *ReportCache) Set(ctx context.Context, key string, value interface{}, policy analytics.Policy) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	if value == nil {
		return ErrCacheNilValue
	}
	if policy.AbsoluteTTL <= 0 {
		return ErrCacheInvalidTTL
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	now := time.Now().UTC()
	env := reportEnvelope{
		Payload:          payload,
		AbsoluteDeadline: now.Add(policy.AbsoluteTTL),
	}

	ttl := policy.AbsoluteTTL
	if policy.SlidingTTL > 0 {
		env.SlidingTTLMillis = policy.SlidingTTL.Milliseconds()
		if policy.SlidingTTL < ttl {
			ttl = policy.SlidingTTL
		}
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	redisKey := entryKey(ctx, key)
	err = r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.cache.client.Set(ctx, redisKey, data, ttl).Err()
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		// Skipping a cache populate is safe: the next read recomputes.
		return nil
	}
	return err
}

// Delete removes a report entry.
func (r *ReportCache) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}

	redisKey := entryKey(ctx, key)
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.cache.client.Del(ctx, redisKey).Err()
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return nil
	}
	return err
}

var _ analytics.ReportCache = (*ReportCache)(nil)
