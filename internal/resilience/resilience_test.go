package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiterBasic(t *testing.T) {
	rl := NewRateLimiter(5, 1, time.Minute, 100)
	allowed := 0
	for i := 0; i < 10; i++ {
		if rl.Allow() {
			allowed++
		}
	}
	if allowed != 5 {
		t.Fatalf("expected 5 allowed from a burst of 10 against capacity 5, got %d", allowed)
	}
}

func TestRateLimiterWindowCap(t *testing.T) {
	rl := NewRateLimiter(100, 100, time.Minute, 3)
	allowed := 0
	for i := 0; i < 10; i++ {
		if rl.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("expected window cap of 3, got %d", allowed)
	}
}

func TestCircuitBreakerAdaptive(t *testing.T) {
	cb := NewCircuitBreakerAdaptive(time.Second, 10, 4, 0.5, 10*time.Millisecond, 1)
	for i := 0; i < 4; i++ {
		if !cb.Allow() {
			t.Fatalf("breaker should remain closed for first samples")
		}
		cb.RecordResult(false)
	}
	if cb.Allow() {
		cb.RecordResult(false)
	}
	time.Sleep(20 * time.Millisecond)
	if !cb.Allow() {
		t.Fatalf("breaker should allow a half-open probe after cool-down")
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	v, err := Retry(context.Background(), 3, time.Millisecond, func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryExhausted(t *testing.T) {
	wantErr := errors.New("permanent")
	_, err := Retry(context.Background(), 2, time.Millisecond, func() (int, error) {
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped permanent error, got %v", err)
	}
}
