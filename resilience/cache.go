package resilience

import (
	"sync"
	"time"
)

// CacheConfig configures a fallback cache.
type CacheConfig struct {
	// DefaultTTL is used when Put is called with a zero TTL.
	DefaultTTL time.Duration
	// SweepInterval bounds how often Put triggers an expiry sweep.
	SweepInterval time.Duration
}

// DefaultCacheConfig returns sensible defaults.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		DefaultTTL:    5 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// cacheEntry is one stored payload with its expiry bookkeeping.
type cacheEntry struct {
	payload  any
	storedAt time.Time
	ttl      time.Duration
}

// FallbackCache is a best-effort TTL store of the last successful result per
// operation key, used to serve stale data during provider outages. It is not
// durable storage: entries vanish on expiry, sweep, or process restart.
type FallbackCache struct {
	config CacheConfig

	mu        sync.Mutex
	entries   map[string]cacheEntry
	lastSweep time.Time

	now func() time.Time
}

// NewFallbackCache creates an empty fallback cache.
func NewFallbackCache(config CacheConfig) *FallbackCache {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 5 * time.Minute
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Minute
	}

	c := &FallbackCache{
		config:  config,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
	c.lastSweep = c.now()
	return c
}

// Put stores payload under key, overwriting any prior entry.
// A zero ttl falls back to the configured default.
func (c *FallbackCache) Put(key string, payload any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = cacheEntry{payload: payload, storedAt: now, ttl: ttl}

	// Opportunistic sweep keeps memory bounded without a dedicated timer.
	if now.Sub(c.lastSweep) >= c.config.SweepInterval {
		c.sweep(now)
	}
}

// Get returns the payload for key if it has not expired.
// Expired entries are evicted on read.
func (c *FallbackCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) > entry.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.payload, true
}

// Age returns how long ago the entry for key was stored.
// Reports false when the key is absent or expired.
func (c *FallbackCache) Age(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	age := c.now().Sub(entry.storedAt)
	if age > entry.ttl {
		delete(c.entries, key)
		return 0, false
	}
	return age, true
}

// Keys returns the keys of all unexpired entries.
func (c *FallbackCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	keys := make([]string, 0, len(c.entries))
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) <= entry.ttl {
			keys = append(keys, key)
		}
	}
	return keys
}

// Len returns the number of stored entries, expired or not.
func (c *FallbackCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *FallbackCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// sweep removes expired entries. Caller must hold the mutex.
func (c *FallbackCache) sweep(now time.Time) {
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) > entry.ttl {
			delete(c.entries, key)
		}
	}
	c.lastSweep = now
}
