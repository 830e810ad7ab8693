// Package resilience provides retry and circuit-breaker policies used to
// wrap a single operation invocation.
package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/forgeworks/workflowforge/internal/clock"
)

// Strategy decides, per attempt, whether to retry and how long to wait.
// Attempt numbering is 1-based: the first call to ShouldRetry/Delay
// describes the decision taken after attempt 1 has failed.
type Strategy interface {
	Name() string
	ShouldRetry(attempt int, err error) bool
	Delay(attempt int) time.Duration
}

// Do runs fn, retrying per strategy's decisions, honoring ctx
// cancellation during retry delays. It calls fn at most strategy's
// implied maximum attempts and exactly once if the first attempt
// succeeds.
func Do(ctx context.Context, c clock.Clock, strategy Strategy, fn func(ctx context.Context) (any, error)) (any, error) {
	attempt := 0
	var lastErr error
	for {
		attempt++
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !strategy.ShouldRetry(attempt, err) {
			return nil, lastErr
		}

		if werr := c.Sleep(ctx, strategy.Delay(attempt)); werr != nil {
			return nil, werr
		}
	}
}

// FixedInterval makes up to MaxAttempts attempts in total, waiting
// Interval between each attempt.
type FixedInterval struct {
	MaxAttempts int
	Interval    time.Duration
}

func (s FixedInterval) Name() string { return "fixed-interval" }

func (s FixedInterval) ShouldRetry(attempt int, err error) bool {
	return attempt < s.MaxAttempts
}

func (s FixedInterval) Delay(attempt int) time.Duration { return s.Interval }

// ExponentialBackoff doubles the delay each attempt starting from
// BaseDelay, optionally jittered, capped at MaxDelay.
type ExponentialBackoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

func (s ExponentialBackoff) Name() string { return "exponential-backoff" }

func (s ExponentialBackoff) ShouldRetry(attempt int, err error) bool {
	return attempt < s.MaxAttempts
}

func (s ExponentialBackoff) Delay(attempt int) time.Duration {
	d := s.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if s.MaxDelay > 0 && d >= s.MaxDelay {
			d = s.MaxDelay
			break
		}
	}
	if s.MaxDelay > 0 && d > s.MaxDelay {
		d = s.MaxDelay
	}
	if s.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()*0.5)) //nolint:gosec // jitter, not security-sensitive
	}
	return d
}

// RandomInterval waits a uniformly random duration in [Min, Max) between
// attempts, up to MaxAttempts.
type RandomInterval struct {
	MaxAttempts int
	Min, Max    time.Duration
}

func (s RandomInterval) Name() string { return "random-interval" }

func (s RandomInterval) ShouldRetry(attempt int, err error) bool {
	return attempt < s.MaxAttempts
}

func (s RandomInterval) Delay(attempt int) time.Duration {
	if s.Max <= s.Min {
		return s.Min
	}
	span := s.Max - s.Min
	return s.Min + time.Duration(rand.Int63n(int64(span))) //nolint:gosec // jitter, not security-sensitive
}
