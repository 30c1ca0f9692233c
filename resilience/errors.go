package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Rejection reasons reported by TryConsume.
const (
	// ReasonDailyQuotaExceeded means the bucket's daily quota is spent.
	ReasonDailyQuotaExceeded = "daily_quota_exceeded"
	// ReasonInsufficientTokens means the burst bucket is empty.
	ReasonInsufficientTokens = "insufficient_tokens"
	// ReasonTooManyConcurrent means the coordination window is full.
	ReasonTooManyConcurrent = "too_many_concurrent"
)

// Common errors.
var (
	// ErrUnknownBucket is returned when a bucket name was never registered.
	ErrUnknownBucket = errors.New("unknown rate limit bucket")
)

// RateLimitError is returned when a rate-limit rejection survives the retry
// loop. Reason is one of the Reason* constants and RetryAfter is the minimum
// wait before the call could succeed.
type RateLimitError struct {
	Bucket     string
	Reason     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited on bucket %q: %s (retry after %s)", e.Bucket, e.Reason, e.RetryAfter)
}

// IsRetryable reports whether the rejection may succeed after waiting.
// A spent daily quota is not retryable within a request: the wait is
// the time to the next UTC reset.
func (e *RateLimitError) IsRetryable() bool {
	return e.Reason != ReasonDailyQuotaExceeded
}

// CircuitOpenError is returned when the circuit breaker is blocking all
// requests. RetryAfter is the time until the next half-open probe is allowed.
type CircuitOpenError struct {
	Name       string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open (retry after %s)", e.Name, e.RetryAfter)
}

// RetriesExhaustedError wraps the last underlying error once the retry budget
// is spent. The cause is preserved for errors.Is/As.
type RetriesExhaustedError struct {
	Attempts int
	Cause    error
}

// Error implements the error interface.
func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Cause)
}

// Unwrap returns the last underlying error.
func (e *RetriesExhaustedError) Unwrap() error { return e.Cause }

// FallbackUnavailableError is returned when the primary call failed and no
// fallback (dedicated function or cached payload) could serve the request.
// Cause is the primary error, never the fallback's.
type FallbackUnavailableError struct {
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *FallbackUnavailableError) Error() string {
	return fmt.Sprintf("operation %q failed with no fallback available: %v", e.Operation, e.Cause)
}

// Unwrap returns the primary error.
func (e *FallbackUnavailableError) Unwrap() error { return e.Cause }

// IsRateLimit reports whether err is a rate-limit rejection.
func IsRateLimit(err error) bool {
	var e *RateLimitError
	return errors.As(err, &e)
}

// IsCircuitOpen reports whether err means the breaker is blocking calls.
func IsCircuitOpen(err error) bool {
	var e *CircuitOpenError
	return errors.As(err, &e)
}
