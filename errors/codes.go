package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Rate limiting and quota errors (retryable after a wait)
const (
	// ErrCodeDailyQuotaExceeded indicates the daily request quota is spent.
	ErrCodeDailyQuotaExceeded ErrorCode = "DAILY_QUOTA_EXCEEDED"
	// ErrCodeRateLimited indicates the burst token bucket is empty.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrCodeConcurrencyThrottled indicates too many simultaneous requests.
	ErrCodeConcurrencyThrottled ErrorCode = "CONCURRENCY_THROTTLED"
)

// Availability errors
const (
	// ErrCodeCircuitOpen indicates the circuit breaker is blocking calls.
	ErrCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"
	// ErrCodeRetryableTransport indicates a transient transport failure.
	ErrCodeRetryableTransport ErrorCode = "RETRYABLE_TRANSPORT"
	// ErrCodeNonRetryableTransport indicates a permanent transport failure.
	ErrCodeNonRetryableTransport ErrorCode = "NON_RETRYABLE_TRANSPORT"
	// ErrCodeRetriesExhausted indicates the retry budget was spent.
	ErrCodeRetriesExhausted ErrorCode = "RETRIES_EXHAUSTED"
	// ErrCodeFallbackUnavailable indicates no cached or alternate data exists.
	ErrCodeFallbackUnavailable ErrorCode = "FALLBACK_UNAVAILABLE"
)

// Request errors
const (
	// ErrCodeUnknownBucket indicates an unregistered rate limit bucket.
	ErrCodeUnknownBucket ErrorCode = "UNKNOWN_BUCKET"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeDailyQuotaExceeded:   true,
	ErrCodeRateLimited:          true,
	ErrCodeConcurrencyThrottled: true,
	ErrCodeCircuitOpen:          true,
	ErrCodeRetryableTransport:   true,
}

// IsRetryableCode reports whether operations failing with this code may be
// retried.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
