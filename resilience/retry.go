package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int
	// BaseDelay is the backoff base for the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration
	// JitterFactor randomizes the delay upward by up to delay*JitterFactor.
	JitterFactor float64
	// RetryIf determines whether an error should be retried.
	RetryIf func(error) bool
	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.1,
		RetryIf:      IsRetryableError,
	}
}

// BackoffDelay computes the exponential backoff for an attempt (1-based):
// base × 2^(attempt-1), plus jitter in [0, delay×jitterFactor).
func BackoffDelay(attempt int, base time.Duration, jitterFactor float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(base) * math.Pow(2, float64(attempt-1))
	if jitterFactor > 0 {
		delay += delay * jitterFactor * rand.Float64()
	}
	return time.Duration(math.Floor(delay))
}

// retryableError lets error types opt in to retry classification.
// Both httpclient and this package's own errors implement it.
type retryableError interface {
	IsRetryable() bool
}

// IsRetryableError classifies transport errors: timeouts, connection-level
// failures, 429 and 5xx responses are retryable; context cancellation and
// other 4xx responses are not.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Typed errors carry their own classification and take precedence:
	// a client-side request timeout wraps context.DeadlineExceeded but
	// is still worth retrying. The context sentinels only short-circuit
	// bare caller cancellation.
	var re retryableError
	if errors.As(err, &re) {
		return re.IsRetryable()
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Last resort: pattern match provider SDK error strings.
	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

var retryablePatterns = []string{
	"timeout",
	"timed out",
	"econnreset",
	"econnrefused",
	"enotfound",
	"connection reset",
	"connection refused",
	"no such host",
	"too many requests",
	"status 429",
	"status 500",
	"status 502",
	"status 503",
	"status 504",
}

// Retry executes fn with exponential backoff between attempts.
// Every sleep is cancellable through ctx.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = IsRetryableError
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.RetryIf(err) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := BackoffDelay(attempt, cfg.BaseDelay, cfg.JitterFactor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, &RetriesExhaustedError{Attempts: cfg.MaxAttempts, Cause: lastErr}
}

// RetryFunc executes a function that returns only an error.
func RetryFunc(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := Retry(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
