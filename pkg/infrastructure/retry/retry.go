package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Policy computes exponential backoff delays of Base^attempt seconds
type Policy struct {
	Base   float64
	Max    time.Duration
	Jitter float64 // fraction of the delay added at random, 0 disables
}

// DefaultPolicy backs off 1s, 2s, 4s, ... capped at 30s
var DefaultPolicy = Policy{Base: 2, Max: 30 * time.Second, Jitter: 0.2}

// Delay returns the wait before the given zero-based attempt is retried
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := p.Base
	if base <= 0 {
		base = 2
	}

	nanos := math.Pow(base, float64(attempt)) * float64(time.Second)
	ceiling := float64(math.MaxInt64 >> 1)
	if p.Max > 0 {
		ceiling = float64(p.Max)
	}
	delay := time.Duration(math.Min(nanos, ceiling))

	if p.Jitter > 0 {
		delay += time.Duration(rand.Float64() * p.Jitter * float64(delay))
	}
	return delay
}

// Sleeper waits between attempts
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer and wakes early on cancellation
type TimerSleeper struct{}

// Sleep blocks for d or until ctx is done
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
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

// Backoff pairs a policy with a sleeper
type Backoff struct {
	Policy  Policy
	Sleeper Sleeper
}

// NewBackoff creates a backoff sleeping on real timers
func NewBackoff(policy Policy) *Backoff {
	return &Backoff{Policy: policy, Sleeper: TimerSleeper{}}
}

// Wait sleeps for the policy delay of the given attempt
func (b *Backoff) Wait(ctx context.Context, attempt int) error {
	return b.Sleeper.Sleep(ctx, b.Policy.Delay(attempt))
}
