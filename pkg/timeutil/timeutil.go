package timeutil

import (
	"math"
	"math/rand"
	"time"
)

// DurationPtr is a helper function to create a pointer to a time.Duration.
func DurationPtr(d time.Duration) *time.Duration {
	return &d
}

// ExponentialBackoffDelay computes the delay to wait before retry attempt
// `attempt` (1-indexed), given the backoff params and an amount of jitter.
// delay = min(initial * multiplier^(attempt-1), max) + uniform(0, jitter).
func ExponentialBackoffDelay(attempt int, jitter time.Duration, rng rand.Rand, params BackoffParam) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	exponent := float64(attempt - 1)
	delay := float64(params.InitialDuration()) * math.Pow(params.Multiplier(), exponent)
	if max := float64(params.MaxDuration()); max > 0 && delay > max {
		delay = max
	}

	if jitter > 0 {
		delay += float64(rng.Int63n(int64(jitter)))
	}

	return time.Duration(delay)
}

// ComputeJitter returns a uniformly distributed duration in [0, max),
// or 0 when max is not positive.
func ComputeJitter(max time.Duration, rng rand.Rand) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(max)))
}

// MaxDuration returns the largest duration in ds, or 0 for an empty slice.
func MaxDuration(ds []time.Duration) time.Duration {
	var max time.Duration
	if len(ds) > 0 {
		max = ds[0]
	}
	for _, d := range ds {
		if d > max {
			max = d
		}
	}
	return max
}
