package orchestrator

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds the retries of transient provider failures.
type RetryPolicy struct {
	MaxAttempts   int // total attempts, including the first
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	JitterPercent int
}

// DefaultRetryPolicy returns three attempts with 500ms exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      8 * time.Second,
		Multiplier:    2,
		JitterPercent: 20,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// NextDelay returns the wait before retry number attempt (0-indexed):
// InitialDelay * Multiplier^attempt, capped at MaxDelay, +/- JitterPercent.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	initial := p.InitialDelay
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 8 * time.Second
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2
	}

	delay := float64(initial) * math.Pow(mult, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	if p.JitterPercent > 0 {
		jitterRange := delay * float64(p.JitterPercent) / 100.0
		delay += (rand.Float64()*2 - 1) * jitterRange
	}
	if delay < 0 {
		delay = float64(initial)
	}
	return time.Duration(delay)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
