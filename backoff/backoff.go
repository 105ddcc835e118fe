// Package backoff provides delay strategies for repeated attempts, used by
// the client when polling job status and reconnecting job streams.
// Strategies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before attempt n (1-indexed).
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Constant waits the same interval before every attempt.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration { return c.Interval }

// Exponential doubles the delay each attempt up to Max.
// Delay = min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns the capped exponential delay for attempt.
func (e *Exponential) Delay(attempt int) time.Duration {
	return capped(e.Initial, e.Max, attempt)
}

// Jitter picks a random delay in [0, Exponential.Delay(attempt)], spreading
// out clients that lost the same server at the same moment.
type Jitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewJitter creates an exponential strategy with full jitter.
func NewJitter(initial, maxDelay time.Duration) *Jitter {
	return &Jitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration bounded by the capped exponential delay.
func (j *Jitter) Delay(attempt int) time.Duration {
	return time.Duration(rand.Float64() * float64(capped(j.Initial, j.Max, attempt))) //nolint:gosec // jitter needs no crypto rand
}

func capped(initial, maxDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(initial) * math.Pow(2, float64(attempt-1))
	if maxDelay > 0 && d > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}

// DefaultPoll is the strategy used to wait for a job to finish:
// 100ms doubling up to 2s.
func DefaultPoll() Strategy {
	return NewExponential(100*time.Millisecond, 2*time.Second)
}

// DefaultReconnect is the strategy used to redial a job stream:
// full jitter from 500ms up to 30s.
func DefaultReconnect() Strategy {
	return NewJitter(500*time.Millisecond, 30*time.Second)
}
