package reliability

import (
	"context"
	"time"
)

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}

// Policy bounds a retry loop.
type Policy struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
}

// Retry calls fn until it succeeds, attempts run out or ctx is done. onRetry, when set,
// observes every failed attempt that will be retried.
func Retry(ctx context.Context, p Policy, fn func(ctx context.Context) error, onRetry func(attempt int, wait time.Duration, err error)) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	var err error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == p.Attempts-1 {
			break
		}
		wait := ExponentialBackoff(attempt, p.Base, p.Cap)
		if onRetry != nil {
			onRetry(attempt+1, wait, err)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
