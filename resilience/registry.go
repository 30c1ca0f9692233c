package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// RegistryConfig configures a rate limiter registry.
type RegistryConfig struct {
	// CoordinationEnabled turns the concurrent-request gate on.
	CoordinationEnabled bool
	// CoordinationWindow is the sliding window used to count simultaneous
	// in-flight requests per bucket.
	CoordinationWindow time.Duration
	// SweepInterval is the cadence of the background purge of stale
	// coordination timestamps. Defaults to CoordinationWindow/2.
	SweepInterval time.Duration
	// DefaultRetryDelay is the backoff base used when a rejection carries
	// no RetryAfter of its own.
	DefaultRetryDelay time.Duration
	// JitterFactor randomizes computed backoff delays (0.0 to 1.0).
	JitterFactor float64
	// OnReject is called for every rate-limit rejection.
	OnReject func(bucket, reason string)
}

// DefaultRegistryConfig returns sensible defaults.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		CoordinationEnabled: true,
		CoordinationWindow:  5 * time.Second,
		DefaultRetryDelay:   time.Second,
		JitterFactor:        0.1,
	}
}

// ExecuteOptions tune a single ExecuteWithRateLimit call.
type ExecuteOptions struct {
	// Tokens is the cost of the call. Defaults to 1.
	Tokens int
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, delay time.Duration, reason string)
}

// Registry owns one TokenBucket per named resource class plus the
// coordination window that bounds simultaneous in-flight requests
// independent of token accounting.
//
// A background sweep purges coordination timestamps older than the window;
// Close stops it and must be called on shutdown.
type Registry struct {
	config RegistryConfig

	mu       sync.Mutex
	buckets  map[string]*TokenBucket
	inflight map[string][]time.Time

	cancel context.CancelFunc
	done   chan struct{}

	now func() time.Time
}

// NewRegistry creates a registry and starts its sweep loop.
func NewRegistry(config RegistryConfig) *Registry {
	if config.CoordinationWindow <= 0 {
		config.CoordinationWindow = 5 * time.Second
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = config.CoordinationWindow / 2
	}
	if config.DefaultRetryDelay <= 0 {
		config.DefaultRetryDelay = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		config:   config,
		buckets:  make(map[string]*TokenBucket),
		inflight: make(map[string][]time.Time),
		cancel:   cancel,
		done:     make(chan struct{}),
		now:      time.Now,
	}
	go r.sweepLoop(ctx)
	return r
}

// Close stops the background sweep and waits for it to exit.
func (r *Registry) Close() {
	r.cancel()
	<-r.done
}

// Register adds a named bucket. Registering a name twice is an error.
func (r *Registry) Register(config BucketConfig) error {
	if config.Name == "" {
		return fmt.Errorf("bucket name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.buckets[config.Name]; exists {
		return fmt.Errorf("bucket %q already registered", config.Name)
	}
	r.buckets[config.Name] = NewTokenBucket(config)
	return nil
}

// MustRegister is Register but panics on error. For use at startup.
func (r *Registry) MustRegister(config BucketConfig) {
	if err := r.Register(config); err != nil {
		panic(err)
	}
}

// Bucket returns the named bucket or ErrUnknownBucket.
func (r *Registry) Bucket(name string) (*TokenBucket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tb, ok := r.buckets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBucket, name)
	}
	return tb, nil
}

// TryConsume runs the coordination gate for the named bucket and, if it
// passes, delegates to the bucket's TryConsume.
func (r *Registry) TryConsume(name string, n int) (ConsumeResult, error) {
	tb, err := r.Bucket(name)
	if err != nil {
		return ConsumeResult{}, err
	}

	if r.config.CoordinationEnabled {
		if res, blocked := r.coordinationGate(name, tb.Config().MaxConcurrent); blocked {
			if r.config.OnReject != nil {
				r.config.OnReject(name, res.Reason)
			}
			return res, nil
		}
	}

	res := tb.TryConsume(n)
	if !res.Allowed && r.config.OnReject != nil {
		r.config.OnReject(name, res.Reason)
	}
	return res, nil
}

// coordinationGate rejects when the bucket already has maxConcurrent
// requests recorded inside the window, otherwise records this one.
func (r *Registry) coordinationGate(name string, maxConcurrent int) (ConsumeResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.config.CoordinationWindow)

	recent := pruneBefore(r.inflight[name], cutoff)
	if len(recent) >= maxConcurrent {
		r.inflight[name] = recent
		// Short randomized delay to spread out the retry stampede.
		retryAfter := time.Duration(500+rand.Intn(1000)) * time.Millisecond
		return ConsumeResult{
			Allowed:    false,
			RetryAfter: retryAfter,
			Reason:     ReasonTooManyConcurrent,
		}, true
	}

	r.inflight[name] = append(recent, now)
	return ConsumeResult{}, false
}

// Acquire blocks until the named bucket grants n tokens or ctx is done.
// Every wait honors the rejection's RetryAfter and is cancellable.
func (r *Registry) Acquire(ctx context.Context, name string, n int) error {
	for {
		res, err := r.TryConsume(name, n)
		if err != nil {
			return err
		}
		if res.Allowed {
			return nil
		}

		delay := res.RetryAfter
		if delay <= 0 {
			delay = r.config.DefaultRetryDelay
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}
}

// ExecuteWithRateLimit acquires tokens and runs fn, retrying rejections and
// retryable errors up to opts.MaxRetries additional attempts.
func (r *Registry) ExecuteWithRateLimit(ctx context.Context, name string, fn func() error, opts ExecuteOptions) error {
	_, err := ExecuteWithRateLimit(ctx, r, name, func() (struct{}, error) {
		return struct{}{}, fn()
	}, opts)
	return err
}

// ExecuteWithRateLimit is the generic form for functions returning a value.
//
// Each attempt first passes the rate limiter; rejections sleep for the
// rejection's RetryAfter (or a computed backoff) before retrying. Errors
// from fn are classified: retryable ones reuse the same backoff loop,
// non-retryable ones propagate immediately. Once attempts are exhausted the
// last error is wrapped in RetriesExhaustedError.
func ExecuteWithRateLimit[T any](ctx context.Context, r *Registry, name string, fn func() (T, error), opts ExecuteOptions) (T, error) {
	var zero T

	if opts.Tokens <= 0 {
		opts.Tokens = 1
	}
	attempts := opts.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		res, err := r.TryConsume(name, opts.Tokens)
		if err != nil {
			return zero, err
		}

		if !res.Allowed {
			lastErr = &RateLimitError{Bucket: name, Reason: res.Reason, RetryAfter: res.RetryAfter}
			if res.Reason == ReasonDailyQuotaExceeded {
				// The wait is the time to the next UTC reset;
				// sleeping it out inside a request is pointless.
				break
			}
			if attempt == attempts {
				break
			}
			delay := res.RetryAfter
			if delay <= 0 {
				delay = BackoffDelay(attempt, r.config.DefaultRetryDelay, r.config.JitterFactor)
			}
			if opts.OnRetry != nil {
				opts.OnRetry(attempt, delay, res.Reason)
			}
			if err := sleepCtx(ctx, delay); err != nil {
				return zero, err
			}
			continue
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		if !IsRetryableError(err) {
			return zero, err
		}

		lastErr = err
		if attempt == attempts {
			break
		}
		delay := BackoffDelay(attempt, r.config.DefaultRetryDelay, r.config.JitterFactor)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, delay, "retryable_error")
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, &RetriesExhaustedError{Attempts: attempts, Cause: lastErr}
}

// BucketStatus returns the status projection for one bucket.
func (r *Registry) BucketStatus(name string) (BucketStatus, error) {
	tb, err := r.Bucket(name)
	if err != nil {
		return BucketStatus{}, err
	}
	return tb.Status(), nil
}

// AllBucketStatus returns status projections for every registered bucket.
func (r *Registry) AllBucketStatus() map[string]BucketStatus {
	r.mu.Lock()
	buckets := make([]*TokenBucket, 0, len(r.buckets))
	for _, tb := range r.buckets {
		buckets = append(buckets, tb)
	}
	r.mu.Unlock()

	out := make(map[string]BucketStatus, len(buckets))
	for _, tb := range buckets {
		st := tb.Status()
		out[st.Name] = st
	}
	return out
}

// ResetBucket restores the named bucket to full capacity.
func (r *Registry) ResetBucket(name string) error {
	tb, err := r.Bucket(name)
	if err != nil {
		return err
	}
	tb.Reset()
	return nil
}

// ResetDailyUsage zeros the named bucket's daily usage.
func (r *Registry) ResetDailyUsage(name string) error {
	tb, err := r.Bucket(name)
	if err != nil {
		return err
	}
	tb.ResetDailyUsage()
	return nil
}

// sweepLoop drops coordination timestamps older than the window so memory
// stays bounded regardless of traffic.
func (r *Registry) sweepLoop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep purges stale coordination timestamps for every bucket.
func (r *Registry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.config.CoordinationWindow)
	for name, stamps := range r.inflight {
		recent := pruneBefore(stamps, cutoff)
		if len(recent) == 0 {
			delete(r.inflight, name)
		} else {
			r.inflight[name] = recent
		}
	}
}

// pruneBefore drops timestamps at or before cutoff, preserving order.
func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return stamps
	}
	return append([]time.Time(nil), stamps[idx:]...)
}

// sleepCtx sleeps for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
