package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestRegistry(config RegistryConfig) *Registry {
	r := NewRegistry(config)
	return r
}

func TestRegistry_UnknownBucket(t *testing.T) {
	r := newTestRegistry(DefaultRegistryConfig())
	defer r.Close()

	if _, err := r.TryConsume("nope", 1); !errors.Is(err, ErrUnknownBucket) {
		t.Errorf("expected ErrUnknownBucket, got %v", err)
	}
	if _, err := r.BucketStatus("nope"); !errors.Is(err, ErrUnknownBucket) {
		t.Errorf("expected ErrUnknownBucket, got %v", err)
	}
	if err := r.ResetBucket("nope"); !errors.Is(err, ErrUnknownBucket) {
		t.Errorf("expected ErrUnknownBucket, got %v", err)
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := newTestRegistry(DefaultRegistryConfig())
	defer r.Close()

	if err := r.Register(BucketConfig{Name: "latest", Capacity: 10, RefillRate: 1}); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if err := r.Register(BucketConfig{Name: "latest", Capacity: 10, RefillRate: 1}); err == nil {
		t.Error("duplicate register should fail")
	}
}

func TestRegistry_ConsumeDelegatesToBucket(t *testing.T) {
	r := newTestRegistry(RegistryConfig{CoordinationEnabled: false})
	defer r.Close()
	r.MustRegister(BucketConfig{Name: "market", Capacity: 2, RefillRate: 0.001})

	for i := 0; i < 2; i++ {
		res, err := r.TryConsume("market", 1)
		if err != nil || !res.Allowed {
			t.Fatalf("consume %d failed: %v %+v", i, err, res)
		}
	}

	res, err := r.TryConsume("market", 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed || res.Reason != ReasonInsufficientTokens {
		t.Errorf("expected insufficient_tokens rejection, got %+v", res)
	}
}

func TestRegistry_CoordinationGateCapsConcurrency(t *testing.T) {
	r := newTestRegistry(RegistryConfig{
		CoordinationEnabled: true,
		CoordinationWindow:  5 * time.Second,
	})
	defer r.Close()

	// Capacity 30 derives max 3 concurrent.
	r.MustRegister(BucketConfig{Name: "latest", Capacity: 30, RefillRate: 2})

	for i := 0; i < 3; i++ {
		res, err := r.TryConsume("latest", 1)
		if err != nil || !res.Allowed {
			t.Fatalf("in-window request %d should pass the gate: %v %+v", i, err, res)
		}
	}

	res, err := r.TryConsume("latest", 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Fatal("4th simultaneous request should be throttled")
	}
	if res.Reason != ReasonTooManyConcurrent {
		t.Errorf("expected reason %q, got %q", ReasonTooManyConcurrent, res.Reason)
	}
	if res.RetryAfter < 500*time.Millisecond || res.RetryAfter > 1500*time.Millisecond {
		t.Errorf("retry-after %s outside the 500ms-1500ms band", res.RetryAfter)
	}
}

func TestRegistry_CoordinationWindowSlides(t *testing.T) {
	r := newTestRegistry(RegistryConfig{
		CoordinationEnabled: true,
		CoordinationWindow:  5 * time.Second,
		SweepInterval:       time.Hour, // keep the sweep off the fake clock
	})
	defer r.Close()

	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	r.MustRegister(BucketConfig{Name: "latest", Capacity: 30, RefillRate: 100, MaxConcurrent: 2})

	r.TryConsume("latest", 1)
	r.TryConsume("latest", 1)
	if res, _ := r.TryConsume("latest", 1); res.Allowed {
		t.Fatal("gate should be full")
	}

	// Recorded timestamps fall out of the window.
	now = now.Add(6 * time.Second)
	if res, _ := r.TryConsume("latest", 1); !res.Allowed {
		t.Errorf("request after window slide should pass, got %+v", res)
	}
}

func TestRegistry_SweepBoundsMemory(t *testing.T) {
	r := newTestRegistry(RegistryConfig{
		CoordinationEnabled: true,
		CoordinationWindow:  time.Second,
		SweepInterval:       time.Hour,
	})
	defer r.Close()

	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	r.MustRegister(BucketConfig{Name: "crypto", Capacity: 100, RefillRate: 100, MaxConcurrent: 50})

	for i := 0; i < 10; i++ {
		r.TryConsume("crypto", 1)
	}

	now = now.Add(2 * time.Second)
	r.sweep()

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.inflight) != 0 {
		t.Errorf("expected inflight map purged, got %d entries", len(r.inflight))
	}
}

func TestRegistry_AcquireBlocksUntilTokens(t *testing.T) {
	r := newTestRegistry(RegistryConfig{CoordinationEnabled: false})
	defer r.Close()
	r.MustRegister(BucketConfig{Name: "market", Capacity: 1, RefillRate: 100})

	if err := r.Acquire(context.Background(), "market", 1); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := r.Acquire(context.Background(), "market", 1); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("second acquire should have waited for refill, took %s", elapsed)
	}
}

func TestRegistry_AcquireHonorsCancellation(t *testing.T) {
	r := newTestRegistry(RegistryConfig{CoordinationEnabled: false})
	defer r.Close()
	r.MustRegister(BucketConfig{Name: "market", Capacity: 1, RefillRate: 0.0001})

	r.Acquire(context.Background(), "market", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := r.Acquire(ctx, "market", 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation must interrupt the wait promptly")
	}
}

func TestExecuteWithRateLimit_RunsWhenAllowed(t *testing.T) {
	r := newTestRegistry(RegistryConfig{CoordinationEnabled: false})
	defer r.Close()
	r.MustRegister(BucketConfig{Name: "latest", Capacity: 5, RefillRate: 1})

	got, err := ExecuteWithRateLimit(context.Background(), r, "latest", func() (string, error) {
		return "payload", nil
	}, ExecuteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "payload" {
		t.Errorf("expected payload, got %q", got)
	}
}

func TestExecuteWithRateLimit_RetriesAfterRejection(t *testing.T) {
	r := newTestRegistry(RegistryConfig{CoordinationEnabled: false, DefaultRetryDelay: 10 * time.Millisecond})
	defer r.Close()
	r.MustRegister(BucketConfig{Name: "latest", Capacity: 1, RefillRate: 50})

	r.TryConsume("latest", 1) // drain the bucket

	var retries int
	_, err := ExecuteWithRateLimit(context.Background(), r, "latest", func() (int, error) {
		return 42, nil
	}, ExecuteOptions{
		MaxRetries: 3,
		OnRetry: func(attempt int, delay time.Duration, reason string) {
			retries++
			if reason != ReasonInsufficientTokens {
				t.Errorf("unexpected retry reason %q", reason)
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if retries == 0 {
		t.Error("expected at least one retry")
	}
}

func TestExecuteWithRateLimit_ExhaustsRetries(t *testing.T) {
	r := newTestRegistry(RegistryConfig{CoordinationEnabled: false})
	defer r.Close()
	r.MustRegister(BucketConfig{Name: "latest", Capacity: 1, RefillRate: 0.0001})

	r.TryConsume("latest", 1)

	_, err := ExecuteWithRateLimit(context.Background(), r, "latest", func() (int, error) {
		t.Error("fn must not run without tokens")
		return 0, nil
	}, ExecuteOptions{MaxRetries: 0})

	var exhausted *RetriesExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected RetriesExhaustedError, got %v", err)
	}
	if !IsRateLimit(exhausted.Cause) {
		t.Errorf("expected rate-limit cause, got %v", exhausted.Cause)
	}
}

func TestRegistry_OnRejectObserver(t *testing.T) {
	type rejection struct {
		bucket string
		reason string
	}
	var rejections []rejection

	r := newTestRegistry(RegistryConfig{
		CoordinationEnabled: false,
		OnReject: func(bucket, reason string) {
			rejections = append(rejections, rejection{bucket, reason})
		},
	})
	defer r.Close()
	r.MustRegister(BucketConfig{Name: "latest", Capacity: 1, RefillRate: 0.0001})

	r.TryConsume("latest", 1)
	if res, _ := r.TryConsume("latest", 1); res.Allowed {
		t.Fatal("expected rejection with the bucket drained")
	}

	if len(rejections) != 1 {
		t.Fatalf("expected 1 rejection event, got %d", len(rejections))
	}
	if rejections[0].bucket != "latest" || rejections[0].reason != ReasonInsufficientTokens {
		t.Errorf("unexpected rejection event %+v", rejections[0])
	}
}

func TestExecuteWithRateLimit_DailyQuotaFailsFast(t *testing.T) {
	r := newTestRegistry(RegistryConfig{CoordinationEnabled: false})
	defer r.Close()
	r.MustRegister(BucketConfig{Name: "archive", Capacity: 5, RefillRate: 100, DailyQuota: 1})

	r.TryConsume("archive", 1) // spend the day's quota

	start := time.Now()
	_, err := ExecuteWithRateLimit(context.Background(), r, "archive", func() (int, error) {
		t.Error("fn must not run with the quota spent")
		return 0, nil
	}, ExecuteOptions{MaxRetries: 3})

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("quota rejection must not sleep out retries, took %s", elapsed)
	}
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected rate-limit cause, got %v", err)
	}
	if rle.Reason != ReasonDailyQuotaExceeded {
		t.Errorf("expected reason %q, got %q", ReasonDailyQuotaExceeded, rle.Reason)
	}
	if rle.IsRetryable() {
		t.Error("a spent daily quota must classify as non-retryable")
	}
}

func TestExecuteWithRateLimit_NonRetryableErrorPropagates(t *testing.T) {
	r := newTestRegistry(RegistryConfig{CoordinationEnabled: false})
	defer r.Close()
	r.MustRegister(BucketConfig{Name: "latest", Capacity: 5, RefillRate: 1})

	fatal := errors.New("invalid api key")
	calls := 0
	_, err := ExecuteWithRateLimit(context.Background(), r, "latest", func() (int, error) {
		calls++
		return 0, fatal
	}, ExecuteOptions{MaxRetries: 3})

	if !errors.Is(err, fatal) {
		t.Errorf("expected original error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("non-retryable error must not be retried, fn ran %d times", calls)
	}
}

func TestExecuteWithRateLimit_RetryableErrorRetries(t *testing.T) {
	r := newTestRegistry(RegistryConfig{
		CoordinationEnabled: false,
		DefaultRetryDelay:   time.Millisecond,
	})
	defer r.Close()
	r.MustRegister(BucketConfig{Name: "latest", Capacity: 10, RefillRate: 100})

	calls := 0
	got, err := ExecuteWithRateLimit(context.Background(), r, "latest", func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection reset by peer")
		}
		return "recovered", nil
	}, ExecuteOptions{MaxRetries: 3})

	if err != nil {
		t.Fatal(err)
	}
	if got != "recovered" || calls != 3 {
		t.Errorf("expected recovery on 3rd call, got %q after %d calls", got, calls)
	}
}

func TestRegistry_CloseStopsSweep(t *testing.T) {
	r := NewRegistry(RegistryConfig{
		CoordinationEnabled: true,
		CoordinationWindow:  10 * time.Millisecond,
	})

	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not join the sweep loop")
	}
}

func TestRegistry_AllBucketStatus(t *testing.T) {
	r := newTestRegistry(DefaultRegistryConfig())
	defer r.Close()
	r.MustRegister(BucketConfig{Name: "latest", Capacity: 30, RefillRate: 2})
	r.MustRegister(BucketConfig{Name: "archive", Capacity: 10, RefillRate: 1})

	all := r.AllBucketStatus()
	if len(all) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(all))
	}
	if all["latest"].Capacity != 30 || all["archive"].Capacity != 10 {
		t.Errorf("unexpected statuses: %+v", all)
	}
}
