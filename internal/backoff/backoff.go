// Package backoff computes retry delays for credential fetches.
package backoff

import (
	"context"
	rand "math/rand/v2"
	"time"
)

// Policy describes decorrelated jitter backoff with a cap.
// See: https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
type Policy struct {
	// Base is the first delay and the lower bound of every delay.
	Base time.Duration

	// Multiplier scales the previous delay to get the upper bound of the next one.
	Multiplier float64

	// Cap bounds every delay. Zero means no cap.
	Cap time.Duration

	// RNG makes delays deterministic in tests. Nil uses the package PRNG.
	RNG *rand.Rand
}

// Next returns the delay that follows prev.
//
// Given previous delay (prev), computes next delay as:
//
//	next = min(cap, base + rand(prev*multiplier - base))
//
// Behavior:
//   - If prev <= 0, start from base
//   - Multiplier < 1.0 falls back to 1.0 (no growth)
//   - Cap < base returns cap
func (p Policy) Next(prev time.Duration) time.Duration {
	base := p.Base
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	mult := p.Multiplier
	if mult < 1.0 {
		mult = 1.0
	}
	if p.Cap > 0 && p.Cap < base {
		return p.Cap
	}
	if prev <= 0 {
		return base
	}

	spread := time.Duration(float64(prev)*mult) - base
	if spread <= 0 {
		spread = base
	}

	var jitter int64
	if p.RNG != nil {
		jitter = p.RNG.Int64N(int64(spread))
	} else {
		jitter = rand.Int64N(int64(spread)) //nolint:gosec // non-crypto backoff jitter
	}

	next := base + time.Duration(jitter)
	if p.Cap > 0 && next > p.Cap {
		return p.Cap
	}

	return next
}

// Retry calls fn up to attempts times, sleeping Policy delays between calls.
//
// fn receives the 1-based attempt number. Retry stops early when fn returns
// nil, when stop reports the error as final, or when ctx is done.
//
// Parameters:
//   - ctx: Context for cancellation of the waits
//   - attempts: Maximum number of calls (values < 1 are treated as 1)
//   - p: Delay policy
//   - stop: Optional predicate; true means do not retry this error
//   - fn: Operation to run
//
// Returns:
//   - int: Number of calls made
//   - error: nil on success, otherwise the last error (or ctx.Err())
func Retry(ctx context.Context, attempts int, p Policy, stop func(error) bool, fn func(ctx context.Context, attempt int) error) (int, error) {
	if attempts < 1 {
		attempts = 1
	}

	var (
		err   error
		delay time.Duration
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if stop != nil && stop(err) {
			return attempt, err
		}
		if attempt == attempts {
			return attempt, err
		}

		delay = p.Next(delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}

	return attempts, err
}

// NewRNG returns a deterministic RNG only when a non-zero seed is provided.
// When seed == 0 it returns nil so callers use the package-level PRNG instead.
//
//nolint:gosec
func NewRNG(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	s1 := uint64(seed)
	s2 := s1 ^ 0x9e3779b97f4a7c15

	return rand.New(rand.NewPCG(s1, s2))
}

// Uniform returns a random duration in [lo, hi]. hi <= lo returns lo.
func Uniform(lo, hi time.Duration, rng *rand.Rand) time.Duration {
	if hi <= lo {
		return lo
	}

	n := int64(hi-lo) + 1
	if rng != nil {
		return lo + time.Duration(rng.Int64N(n))
	}

	return lo + time.Duration(rand.Int64N(n)) //nolint:gosec // election jitter
}
