package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeUnknownBucket, "no such bucket", http.StatusBadRequest)
	if err.Code != ErrCodeUnknownBucket {
		t.Errorf("expected code %s, got %s", ErrCodeUnknownBucket, err.Code)
	}
	if err.Message != "no such bucket" {
		t.Errorf("expected message 'no such bucket', got %q", err.Message)
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, err.HTTPStatus)
	}
	if err.Retryable {
		t.Error("UNKNOWN_BUCKET should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeRateLimited, "slow down", http.StatusTooManyRequests)
	if !err.Retryable {
		t.Error("RATE_LIMITED should be retryable")
	}
}

func TestAppError_RateLimited_Success(t *testing.T) {
	err := RateLimited("crypto", 500*time.Millisecond)
	if err.Code != ErrCodeRateLimited {
		t.Errorf("expected RATE_LIMITED, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", err.HTTPStatus)
	}
	if err.RetryAfter != 500*time.Millisecond {
		t.Errorf("expected 500ms retry-after, got %v", err.RetryAfter)
	}
	if err.Details["bucket"] != "crypto" {
		t.Errorf("expected bucket=crypto, got %v", err.Details["bucket"])
	}
	if !err.Retryable {
		t.Error("RateLimited should be retryable")
	}
}

func TestAppError_DailyQuotaExceeded_Success(t *testing.T) {
	err := DailyQuotaExceeded("latest", 14*time.Hour)
	if err.Code != ErrCodeDailyQuotaExceeded {
		t.Errorf("expected DAILY_QUOTA_EXCEEDED, got %s", err.Code)
	}
	if err.RetryAfter != 14*time.Hour {
		t.Errorf("expected 14h retry-after, got %v", err.RetryAfter)
	}
}

func TestAppError_CircuitOpen_Success(t *testing.T) {
	err := CircuitOpen("newsdata", 30*time.Second)
	if err.Code != ErrCodeCircuitOpen {
		t.Errorf("expected CIRCUIT_OPEN, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", err.HTTPStatus)
	}
	if !err.Retryable {
		t.Error("CircuitOpen should be retryable")
	}
}

func TestAppError_RetriesExhausted_WrapsCause(t *testing.T) {
	cause := fmt.Errorf("status 503")
	err := RetriesExhausted("latest_headlines", 3, cause)
	if err.Retryable {
		t.Error("RetriesExhausted should not be retryable")
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Details["attempts"] != 3 {
		t.Errorf("expected attempts=3, got %v", err.Details["attempts"])
	}
}

func TestAppError_FallbackUnavailable_Success(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := FallbackUnavailable("quote", cause)
	if err.Code != ErrCodeFallbackUnavailable {
		t.Errorf("expected FALLBACK_UNAVAILABLE, got %s", err.Code)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
}

func TestAppError_WithCause_Success(t *testing.T) {
	inner := fmt.Errorf("boom")
	err := Internal("something broke").WithCause(inner)
	if !stderrors.Is(err, inner) {
		t.Error("expected Unwrap to expose the cause")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected cause in Error(), got %q", err.Error())
	}
}

func TestAppError_WithDetail_Success(t *testing.T) {
	err := Validation("bad symbol").WithDetail("symbol", "???")
	if err.Details["symbol"] != "???" {
		t.Errorf("expected detail symbol=???, got %v", err.Details["symbol"])
	}
}

func TestAppError_IsRetryable_Interface(t *testing.T) {
	var r interface{ IsRetryable() bool } = RateLimited("crypto", 0)
	if !r.IsRetryable() {
		t.Error("expected IsRetryable() true for rate limit errors")
	}
}

func TestAppError_ToResponse_Success(t *testing.T) {
	err := RateLimited("market", 1500*time.Millisecond)
	resp := err.ToResponse()
	if resp.Error.Code != ErrCodeRateLimited {
		t.Errorf("expected RATE_LIMITED, got %s", resp.Error.Code)
	}
	if !resp.Error.Retryable {
		t.Error("expected retryable response")
	}
	if resp.Error.RetryAfterMilli != 1500 {
		t.Errorf("expected retry_after_ms=1500, got %d", resp.Error.RetryAfterMilli)
	}
}

func TestIsAppError_Success(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", UnknownBucket("ghost"))
	if !IsAppError(err) {
		t.Error("expected IsAppError true for wrapped AppError")
	}
	if IsAppError(fmt.Errorf("plain")) {
		t.Error("expected IsAppError false for plain error")
	}
}

func TestAsAppError_Success(t *testing.T) {
	appErr, ok := AsAppError(fmt.Errorf("wrapped: %w", Unauthorized("bad token")))
	if !ok {
		t.Fatal("expected AsAppError to succeed")
	}
	if appErr.Code != ErrCodeUnauthorized {
		t.Errorf("expected UNAUTHORIZED, got %s", appErr.Code)
	}
	if _, ok := AsAppError(fmt.Errorf("plain")); ok {
		t.Error("expected AsAppError to fail for plain error")
	}
}

func TestIsRetryableCode_Table(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeRateLimited, true},
		{ErrCodeDailyQuotaExceeded, true},
		{ErrCodeConcurrencyThrottled, true},
		{ErrCodeCircuitOpen, true},
		{ErrCodeRetryableTransport, true},
		{ErrCodeNonRetryableTransport, false},
		{ErrCodeRetriesExhausted, false},
		{ErrCodeFallbackUnavailable, false},
		{ErrCodeUnknownBucket, false},
		{ErrCodeInternal, false},
	}
	for _, tt := range tests {
		if got := IsRetryableCode(tt.code); got != tt.want {
			t.Errorf("IsRetryableCode(%s) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
