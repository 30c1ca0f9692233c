package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoffDelay_ExponentialWithJitterBounds(t *testing.T) {
	base := time.Second
	for attempt := 1; attempt <= 5; attempt++ {
		lower := time.Duration(float64(base) * float64(int(1)<<(attempt-1)))
		upper := time.Duration(float64(lower) * 1.1)

		for i := 0; i < 50; i++ {
			delay := BackoffDelay(attempt, base, 0.1)
			if delay < lower || delay > upper {
				t.Fatalf("attempt %d: delay %s outside [%s, %s]", attempt, delay, lower, upper)
			}
		}
	}
}

func TestBackoffDelay_NoJitter(t *testing.T) {
	if got := BackoffDelay(3, time.Second, 0); got != 4*time.Second {
		t.Errorf("expected 4s for attempt 3, got %s", got)
	}
	if got := BackoffDelay(0, time.Second, 0); got != time.Second {
		t.Errorf("attempt below 1 should clamp to base, got %s", got)
	}
}

// transportTimeoutError mimics a typed client error whose per-call
// timeout wraps context.DeadlineExceeded while remaining retryable.
type transportTimeoutError struct{ err error }

func (e *transportTimeoutError) Error() string    { return "request timeout: " + e.err.Error() }
func (e *transportTimeoutError) Unwrap() error    { return e.err }
func (e *transportTimeoutError) IsRetryable() bool { return true }

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"typed timeout wrapping deadline", &transportTimeoutError{context.DeadlineExceeded}, true},
		{"rate limit error", &RateLimitError{Bucket: "latest", Reason: ReasonInsufficientTokens}, true},
		{"daily quota rate limit", &RateLimitError{Bucket: "latest", Reason: ReasonDailyQuotaExceeded}, false},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"dns failure", errors.New("dial tcp: lookup api.example.com: no such host"), true},
		{"timeout string", errors.New("request timed out"), true},
		{"server error", errors.New("unexpected status 503"), true},
		{"throttled", errors.New("status 429 too many requests"), true},
		{"bad request", errors.New("status 400 bad request"), false},
		{"auth failure", errors.New("invalid api key"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.want {
				t.Errorf("IsRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:  4,
		BaseDelay:    time.Millisecond,
		JitterFactor: 0.1,
	}

	calls := 0
	got, err := Retry(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection refused")
		}
		return 7, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 || calls != 3 {
		t.Errorf("expected 7 after 3 calls, got %d after %d", got, calls)
	}
}

func TestRetry_NonRetryableReturnsImmediately(t *testing.T) {
	fatal := errors.New("status 400 bad request")
	calls := 0
	_, err := Retry(context.Background(), DefaultRetryConfig(), func() (int, error) {
		calls++
		return 0, fatal
	})
	if !errors.Is(err, fatal) {
		t.Errorf("expected original error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestRetry_WrapsLastErrorWhenExhausted(t *testing.T) {
	transient := errors.New("connection reset by peer")
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}

	_, err := Retry(context.Background(), cfg, func() (int, error) {
		return 0, transient
	})

	var exhausted *RetriesExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected RetriesExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", exhausted.Attempts)
	}
	if !errors.Is(err, transient) {
		t.Error("cause must be reachable through errors.Is")
	}
}

func TestRetry_CancellationAbortsSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: 10 * time.Second}
	start := time.Now()

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Retry(ctx, cfg, func() (int, error) {
		return 0, errors.New("connection refused")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation must abort the backoff sleep immediately")
	}
}

func TestRetry_ObserverSeesEachRetry(t *testing.T) {
	var attempts []int
	cfg := RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
		},
	}

	_, _ = Retry(context.Background(), cfg, func() (int, error) {
		return 0, errors.New("timed out")
	})

	if len(attempts) != 2 {
		t.Fatalf("expected 2 retry notifications, got %d", len(attempts))
	}
	if attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("unexpected attempt numbers: %v", attempts)
	}
}

func TestRetryFunc(t *testing.T) {
	calls := 0
	err := RetryFunc(context.Background(), RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}, func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("expected single successful call, got err=%v calls=%d", err, calls)
	}
}
