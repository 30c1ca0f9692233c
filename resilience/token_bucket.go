package resilience

import (
	"math"
	"sync"
	"time"
)

// BucketConfig configures a token bucket.
type BucketConfig struct {
	// Name identifies this bucket for metrics/logging.
	Name string
	// Capacity is the maximum burst size in tokens.
	Capacity float64
	// RefillRate is the number of tokens added per second.
	RefillRate float64
	// DailyQuota is the maximum number of tokens per day. 0 disables the quota.
	DailyQuota int64
	// ResetHourUTC is the wall-clock hour (0-23, UTC) at which the daily
	// quota resets.
	ResetHourUTC int
	// MaxConcurrent caps simultaneous in-window requests through the
	// Registry's coordination gate. 0 derives max(1, Capacity/10).
	MaxConcurrent int
}

// DefaultBucketConfig returns sensible defaults.
func DefaultBucketConfig(name string) BucketConfig {
	return BucketConfig{
		Name:       name,
		Capacity:   30,
		RefillRate: 2.0,
		DailyQuota: 5000,
	}
}

// ConsumeResult is the outcome of a TryConsume call.
type ConsumeResult struct {
	// Allowed reports whether the tokens were granted.
	Allowed bool
	// TokensConsumed is the number of tokens deducted (0 when rejected).
	TokensConsumed int
	// RetryAfter is the minimum wait before the same request could succeed.
	// Only set when rejected.
	RetryAfter time.Duration
	// Reason is one of the Reason* constants. Only set when rejected.
	Reason string
}

// BucketStatus is a point-in-time projection of a bucket's state.
// It is informational only and never authorizes a call.
type BucketStatus struct {
	Name          string    `json:"name"`
	Tokens        float64   `json:"tokens"`
	Capacity      float64   `json:"capacity"`
	RefillRate    float64   `json:"refill_rate"`
	DailyUsage    int64     `json:"daily_usage"`
	DailyQuota    int64     `json:"daily_quota"`
	QuotaUsedPct  float64   `json:"quota_used_pct"`
	NextRefill    time.Time `json:"next_refill"`
	NextReset     time.Time `json:"next_reset"`
	MaxConcurrent int       `json:"max_concurrent"`
}

// TokenBucket implements a token bucket with continuous refill and a
// secondary daily quota that resets at a fixed UTC hour.
//
// All mutation goes through TryConsume/Reset/ResetDailyUsage; refill and
// consume are serialized behind a single mutex so concurrent callers never
// observe a stale token count.
type TokenBucket struct {
	config BucketConfig

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	dailyUsage int64
	nextReset  time.Time

	now func() time.Time
}

// NewTokenBucket creates a new token bucket filled to capacity.
func NewTokenBucket(config BucketConfig) *TokenBucket {
	if config.Capacity <= 0 {
		config.Capacity = 30
	}
	if config.RefillRate <= 0 {
		config.RefillRate = 1.0
	}
	if config.ResetHourUTC < 0 || config.ResetHourUTC > 23 {
		config.ResetHourUTC = 0
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = deriveMaxConcurrent(config.Capacity)
	}

	tb := &TokenBucket{
		config: config,
		tokens: config.Capacity,
		now:    time.Now,
	}
	tb.lastRefill = tb.now()
	tb.nextReset = nextResetTime(tb.lastRefill, config.ResetHourUTC)
	return tb
}

// deriveMaxConcurrent is the default coupling between burst capacity and the
// coordination gate. The ratio is configurable per bucket via MaxConcurrent.
func deriveMaxConcurrent(capacity float64) int {
	mc := int(capacity / 10)
	if mc < 1 {
		mc = 1
	}
	return mc
}

// nextResetTime returns the next occurrence of hour (UTC) strictly after t.
func nextResetTime(t time.Time, hour int) time.Time {
	t = t.UTC()
	next := time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(t) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// TryConsume attempts to consume n tokens without blocking.
// The daily quota is checked before burst tokens: a request that would
// exceed the quota is rejected even when burst tokens are available.
func (tb *TokenBucket) TryConsume(n int) ConsumeResult {
	if n <= 0 {
		n = 1
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	tb.refill(now)
	tb.resetDailyIfDue(now)

	if tb.config.DailyQuota > 0 && tb.dailyUsage+int64(n) > tb.config.DailyQuota {
		return ConsumeResult{
			Allowed:    false,
			RetryAfter: tb.nextReset.Sub(now.UTC()),
			Reason:     ReasonDailyQuotaExceeded,
		}
	}

	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		tb.dailyUsage += int64(n)
		return ConsumeResult{Allowed: true, TokensConsumed: n}
	}

	needed := float64(n) - tb.tokens
	waitMs := math.Ceil(needed / tb.config.RefillRate * 1000)
	return ConsumeResult{
		Allowed:    false,
		RetryAfter: time.Duration(waitMs) * time.Millisecond,
		Reason:     ReasonInsufficientTokens,
	}
}

// Status returns the bucket's current state after a refill/reset pass.
func (tb *TokenBucket) Status() BucketStatus {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	tb.refill(now)
	tb.resetDailyIfDue(now)

	st := BucketStatus{
		Name:          tb.config.Name,
		Tokens:        tb.tokens,
		Capacity:      tb.config.Capacity,
		RefillRate:    tb.config.RefillRate,
		DailyUsage:    tb.dailyUsage,
		DailyQuota:    tb.config.DailyQuota,
		NextReset:     tb.nextReset,
		MaxConcurrent: tb.config.MaxConcurrent,
	}
	if tb.config.DailyQuota > 0 {
		st.QuotaUsedPct = float64(tb.dailyUsage) / float64(tb.config.DailyQuota) * 100
	}
	if tb.tokens < tb.config.Capacity {
		waitSeconds := 1.0 / tb.config.RefillRate
		st.NextRefill = now.Add(time.Duration(waitSeconds * float64(time.Second)))
	}
	return st
}

// Reset restores the bucket to full burst capacity.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = tb.config.Capacity
	tb.lastRefill = tb.now()
}

// ResetDailyUsage zeros the daily usage and recomputes the next reset
// boundary without touching burst tokens.
func (tb *TokenBucket) ResetDailyUsage() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.dailyUsage = 0
	tb.nextReset = nextResetTime(tb.now(), tb.config.ResetHourUTC)
}

// Config returns the bucket's configuration.
func (tb *TokenBucket) Config() BucketConfig {
	return tb.config
}

// refill adds tokens for the time elapsed since the last refill,
// capped at capacity. Caller must hold the mutex.
func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.lastRefill = now

	tb.tokens += elapsed * tb.config.RefillRate
	if tb.tokens > tb.config.Capacity {
		tb.tokens = tb.config.Capacity
	}
	if tb.tokens < 0 {
		tb.tokens = 0
	}
}

// resetDailyIfDue zeros the daily usage once the wall clock crosses the
// reset boundary. Caller must hold the mutex.
func (tb *TokenBucket) resetDailyIfDue(now time.Time) {
	if now.UTC().Before(tb.nextReset) {
		return
	}
	tb.dailyUsage = 0
	tb.nextReset = nextResetTime(now, tb.config.ResetHourUTC)
}
