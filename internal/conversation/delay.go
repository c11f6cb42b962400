package conversation

import (
	"context"
	"math/rand/v2"
	"time"
)

// DelayFunc picks the next pause. Sessions call it once per suspension point.
type DelayFunc func() time.Duration

// SleepFunc pauses for d or until ctx is done, returning ctx.Err() in the latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

var (
	DefaultThinkDelay  = RandomDelay(700*time.Millisecond, 1500*time.Millisecond)
	DefaultRevealDelay = RandomDelay(30*time.Millisecond, 80*time.Millisecond)
)

func FixedDelay(d time.Duration) DelayFunc {
	return func() time.Duration { return d }
}

// RandomDelay returns a uniform delay in [lo, hi]. Swapped bounds are tolerated.
func RandomDelay(lo, hi time.Duration) DelayFunc {
	if hi < lo {
		lo, hi = hi, lo
	}
	lo = max(lo, 0)
	span := int64(hi - lo)
	return func() time.Duration {
		if span <= 0 {
			return lo
		}
		return lo + time.Duration(rand.Int64N(span+1))
	}
}

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
