package resilience

import (
	"context"
	"time"
)

// ClientConfig configures a resilient client.
type ClientConfig struct {
	// Name identifies the external service this client guards.
	Name string
	// Registry is the shared rate limiter registry. Required.
	Registry *Registry
	// Buckets are the registry bucket names this client draws from,
	// used to scope Status. Empty means all registered buckets.
	Buckets []string
	// CircuitBreaker configures the per-client breaker.
	CircuitBreaker CircuitBreakerConfig
	// Retry configures the transport retry loop.
	Retry RetryConfig
	// Cache configures the fallback cache.
	Cache CacheConfig
	// BucketFor maps an operation name to a bucket name.
	// Defaults to the operation name itself.
	BucketFor func(operation string) string
	// OnRetry is called before each backoff sleep inside Execute, with
	// the operation key the retry belongs to.
	OnRetry func(operation string, attempt int, err error, delay time.Duration)
	// OnFallback is called whenever a fallback result is served.
	OnFallback func(operation, reason string)
	// OnFallbackError is called when a dedicated fallback function fails.
	// The primary error is still the one surfaced to the caller.
	OnFallbackError func(operation string, err error)
}

// ClientStatus aggregates the health of a client's resilience stack.
type ClientStatus struct {
	Name      string                  `json:"name"`
	Healthy   bool                    `json:"healthy"`
	Circuit   CircuitStats            `json:"circuit"`
	Buckets   map[string]BucketStatus `json:"buckets"`
	CacheSize int                     `json:"cache_size"`
	CacheKeys []string                `json:"cache_keys"`
}

// Client composes the circuit breaker, rate limiter registry, retry loop and
// fallback cache around a single Execute entry point. One Client guards one
// external service; its breaker and cache live as long as the client.
type Client struct {
	config  ClientConfig
	breaker *CircuitBreaker
	cache   *FallbackCache
}

// NewClient creates a resilient client. The registry must outlive the client.
func NewClient(config ClientConfig) *Client {
	if config.Registry == nil {
		panic("resilience: ClientConfig.Registry is required")
	}
	if config.CircuitBreaker.Name == "" {
		config.CircuitBreaker = DefaultCircuitBreakerConfig(config.Name)
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = DefaultRetryConfig()
	}
	if config.Cache.DefaultTTL == 0 {
		config.Cache = DefaultCacheConfig()
	}
	if config.BucketFor == nil {
		config.BucketFor = func(operation string) string { return operation }
	}

	return &Client{
		config:  config,
		breaker: NewCircuitBreaker(config.CircuitBreaker),
		cache:   NewFallbackCache(config.Cache),
	}
}

// Execute runs fn through the full resilience stack.
//
// The circuit breaker is consulted first: when open, the dedicated fallback
// (if any) and then the cache are tried before giving up with
// CircuitOpenError. Otherwise each attempt passes the rate limiter, runs fn,
// and records the outcome on the breaker. Successful results are cached
// under the operation key. When attempts are exhausted or the breaker trips
// mid-flight, the fallback path runs; the primary error is always the one
// surfaced when no fallback succeeds.
func Execute[T any](ctx context.Context, c *Client, operation string, fn func(context.Context) (T, error), fallback func(context.Context) (T, error)) (T, error) {
	var zero T

	if !c.breaker.CanProceed() {
		if result, ok := serveFallback(ctx, c, operation, "circuit_open", fallback); ok {
			return result.(T), nil
		}
		return zero, &CircuitOpenError{Name: c.config.Name, RetryAfter: c.breaker.retryAfter()}
	}

	bucket := c.config.BucketFor(operation)
	cfg := c.config.Retry

	var lastErr error
	retriesSpent := false
	calledUpstream := false

	// CanProceed consumed a half-open probe slot; give it back if the
	// rate limiter keeps every attempt from reaching the dependency.
	defer func() {
		if !calledUpstream {
			c.breaker.releaseProbe()
		}
	}()

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		res, err := c.config.Registry.TryConsume(bucket, 1)
		if err != nil {
			return zero, err
		}

		if !res.Allowed {
			lastErr = &RateLimitError{Bucket: bucket, Reason: res.Reason, RetryAfter: res.RetryAfter}
			if res.Reason == ReasonDailyQuotaExceeded {
				// Waiting out a daily quota inside a request is pointless;
				// degrade to fallback right away.
				break
			}
			if attempt == cfg.MaxAttempts {
				retriesSpent = true
				break
			}
			if err := sleepCtx(ctx, res.RetryAfter); err != nil {
				return zero, err
			}
			continue
		}

		calledUpstream = true
		result, err := fn(ctx)
		if err == nil {
			c.breaker.RecordSuccess()
			c.cache.Put(operation, result, c.config.Cache.DefaultTTL)
			return result, nil
		}

		c.breaker.RecordFailure()
		lastErr = err

		if !IsRetryableError(err) {
			// No retry and no fallback unless the breaker tripped on this
			// very failure.
			if c.breaker.State() != StateOpen {
				return zero, err
			}
			break
		}
		if c.breaker.State() == StateOpen {
			break
		}
		if attempt == cfg.MaxAttempts {
			retriesSpent = true
			break
		}

		delay := BackoffDelay(attempt, cfg.BaseDelay, cfg.JitterFactor)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if c.config.OnRetry != nil {
			c.config.OnRetry(operation, attempt, err, delay)
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return zero, err
		}
	}

	primary := lastErr
	if retriesSpent {
		primary = &RetriesExhaustedError{Attempts: cfg.MaxAttempts, Cause: lastErr}
	}

	reason := "error"
	if c.breaker.State() == StateOpen {
		reason = "circuit_open"
	} else if IsRateLimit(lastErr) {
		reason = "rate_limited"
	}
	if result, ok := serveFallback(ctx, c, operation, reason, fallback); ok {
		return result.(T), nil
	}

	if fallback == nil {
		if _, cached := c.cache.Get(operation); !cached {
			return zero, &FallbackUnavailableError{Operation: operation, Cause: primary}
		}
	}
	return zero, primary
}

// serveFallback tries the dedicated fallback function, then the cache.
// The returned value is a T produced by fallback or stored by a prior
// Execute success.
func serveFallback[T any](ctx context.Context, c *Client, operation, reason string, fallback func(context.Context) (T, error)) (any, bool) {
	if fallback != nil {
		result, err := fallback(ctx)
		if err == nil {
			c.notifyFallback(operation, reason)
			return result, true
		}
		if c.config.OnFallbackError != nil {
			c.config.OnFallbackError(operation, err)
		}
	}

	if payload, ok := c.cache.Get(operation); ok {
		if result, ok := payload.(T); ok {
			c.notifyFallback(operation, "stale_cache")
			return result, true
		}
	}
	return nil, false
}

// notifyFallback fires the fallback observer if configured.
func (c *Client) notifyFallback(operation, reason string) {
	if c.config.OnFallback != nil {
		c.config.OnFallback(operation, reason)
	}
}

// CacheAge reports how long ago the operation's cached payload was stored.
func (c *Client) CacheAge(operation string) (time.Duration, bool) {
	return c.cache.Age(operation)
}

// Breaker exposes the client's circuit breaker for introspection.
func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

// Cache exposes the client's fallback cache.
func (c *Client) Cache() *FallbackCache {
	return c.cache
}

// Status aggregates circuit, bucket and cache state with a health flag.
// Healthy means the breaker is not open.
func (c *Client) Status() ClientStatus {
	stats := c.breaker.Stats()

	var buckets map[string]BucketStatus
	if len(c.config.Buckets) == 0 {
		buckets = c.config.Registry.AllBucketStatus()
	} else {
		buckets = make(map[string]BucketStatus, len(c.config.Buckets))
		for _, name := range c.config.Buckets {
			if st, err := c.config.Registry.BucketStatus(name); err == nil {
				buckets[name] = st
			}
		}
	}

	return ClientStatus{
		Name:      c.config.Name,
		Healthy:   stats.State != StateOpen.String(),
		Circuit:   stats,
		Buckets:   buckets,
		CacheSize: c.cache.Len(),
		CacheKeys: c.cache.Keys(),
	}
}

// ResetCircuit restores the breaker to closed. Administrative use only.
func (c *Client) ResetCircuit() {
	c.breaker.Reset()
}

// ClearCache drops all cached fallback payloads.
func (c *Client) ClearCache() {
	c.cache.Clear()
}
