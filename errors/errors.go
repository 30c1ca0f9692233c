package errors

import (
	"fmt"
	"net/http"
	"time"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// RetryAfter is the suggested wait before retrying, when known.
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// IsRetryable lets the resilience retry classifier pick up coded errors.
func (e *AppError) IsRetryable() bool { return e.Retryable }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Common Error Constructors ---

// DailyQuotaExceeded creates an error for a spent daily quota.
func DailyQuotaExceeded(bucket string, retryAfter time.Duration) *AppError {
	return &AppError{
		Code: ErrCodeDailyQuotaExceeded, Message: fmt.Sprintf("Daily quota for %q is exhausted.", bucket),
		HTTPStatus: http.StatusTooManyRequests, Retryable: true, RetryAfter: retryAfter,
		Details: map[string]any{"bucket": bucket},
	}
}

// RateLimited creates an error for an empty burst bucket.
func RateLimited(bucket string, retryAfter time.Duration) *AppError {
	return &AppError{
		Code: ErrCodeRateLimited, Message: fmt.Sprintf("Too many requests on %q. Wait and retry.", bucket),
		HTTPStatus: http.StatusTooManyRequests, Retryable: true, RetryAfter: retryAfter,
		Details: map[string]any{"bucket": bucket},
	}
}

// ConcurrencyThrottled creates an error for a full coordination window.
func ConcurrencyThrottled(bucket string, retryAfter time.Duration) *AppError {
	return &AppError{
		Code: ErrCodeConcurrencyThrottled, Message: fmt.Sprintf("Too many simultaneous requests on %q.", bucket),
		HTTPStatus: http.StatusTooManyRequests, Retryable: true, RetryAfter: retryAfter,
		Details: map[string]any{"bucket": bucket},
	}
}

// CircuitOpen creates an error for a blocking circuit breaker.
func CircuitOpen(service string, retryAfter time.Duration) *AppError {
	return &AppError{
		Code: ErrCodeCircuitOpen, Message: fmt.Sprintf("The %s service is temporarily unavailable.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true, RetryAfter: retryAfter,
		Details: map[string]any{"service": service},
	}
}

// RetriesExhausted wraps the last error after the retry budget is spent.
func RetriesExhausted(operation string, attempts int, cause error) *AppError {
	return &AppError{
		Code: ErrCodeRetriesExhausted, Message: fmt.Sprintf("Operation %q failed after %d attempts.", operation, attempts),
		HTTPStatus: http.StatusBadGateway, Retryable: false, Cause: cause,
		Details: map[string]any{"operation": operation, "attempts": attempts},
	}
}

// FallbackUnavailable creates an error for a failed call with no stale data.
func FallbackUnavailable(operation string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeFallbackUnavailable, Message: fmt.Sprintf("No fallback data available for %q.", operation),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: false, Cause: cause,
		Details: map[string]any{"operation": operation},
	}
}

// UnknownBucket creates an error for an unregistered bucket name.
func UnknownBucket(bucket string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownBucket, Message: fmt.Sprintf("Rate limit bucket %q is not registered.", bucket),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"bucket": bucket},
	}
}

// Validation creates an error for invalid input.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// Unauthorized creates an error for a rejected credential.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code: ErrCodeUnauthorized, Message: message,
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// Internal creates an error for an unexpected internal failure.
func Internal(message string) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: message,
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
	}
}
