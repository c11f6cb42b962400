package reliability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExponentialBackoffCap(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 700 * time.Millisecond
	if got := ExponentialBackoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(2, base, capDur); got != 400*time.Millisecond {
		t.Fatalf("attempt 2 = %v, want %v", got, 400*time.Millisecond)
	}
	if got := ExponentialBackoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want %v", got, capDur)
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	retries := 0
	err := Retry(context.Background(), Policy{Attempts: 5, Base: time.Millisecond, Cap: 2 * time.Millisecond},
		func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("db not ready")
			}
			return nil
		},
		func(int, time.Duration, error) { retries++ },
	)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if retries != 2 {
		t.Fatalf("retries = %d, want 2", retries)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	want := errors.New("still down")
	err := Retry(context.Background(), Policy{Attempts: 2, Base: time.Millisecond, Cap: time.Millisecond},
		func(context.Context) error { return want }, nil)
	if !errors.Is(err, want) {
		t.Fatalf("Retry() error = %v, want %v", err, want)
	}
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, Policy{Attempts: 3, Base: time.Second, Cap: time.Second},
		func(context.Context) error { return errors.New("boom") }, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Retry() error = %v, want context.Canceled", err)
	}
}
