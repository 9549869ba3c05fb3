// Package retry implements the lazy backoff-interval sequence shared by the
// peer connection orchestrator (C8) and the sustained subscription driver
// (C9). It has no notion of what is being retried — callers pull intervals
// one at a time and sleep on them.
package retry

import (
	"time"

	"github.com/joshuafuller/matterlink/internal/clock"
)

// Params parameterizes a Schedule. Zero value uses the defaults noted on
// each field.
type Params struct {
	// InitialInterval is the base interval for attempt 0. Default 1s.
	InitialInterval time.Duration

	// BackoffFactor multiplies the interval on each attempt. Default 2.
	// Values of 1 (constant interval) and fractional values (decaying
	// interval) are both legal.
	BackoffFactor float64

	// MaximumInterval caps the unjittered interval, if non-zero.
	MaximumInterval time.Duration

	// MaximumCount bounds the number of intervals yielded, if positive. A
	// negative or absent value (0) with no Timeout makes the schedule
	// infinite. MaximumCount == 0 together with CountIsSet == true is the
	// special "empty sequence" case called out in spec §4.1.
	MaximumCount int

	// Timeout bounds the cumulative sum of yielded intervals, if non-zero.
	// The final interval is clamped so the cumulative sum equals exactly
	// Timeout.
	Timeout time.Duration

	// JitterFactor scales a uniform random multiplier applied on top of the
	// capped base interval. Default 0 (no jitter).
	JitterFactor float64

	// Entropy supplies the randomness backing jitter. Required whenever
	// JitterFactor != 0; ignored otherwise.
	Entropy clock.Entropy

	// CountIsSet distinguishes "MaximumCount not supplied" from "supplied
	// as 0" (spec §4.1: "maximum-count = 0 yields an empty sequence").
	// Callers that want an explicitly-zero count must set this true.
	CountIsSet bool
}

func (p Params) withDefaults() Params {
	if p.InitialInterval == 0 {
		p.InitialInterval = time.Second
	}
	if p.BackoffFactor == 0 {
		p.BackoffFactor = 2
	}
	return p
}

// Schedule is a finite or infinite sequence of backoff intervals. It is not
// safe for concurrent use by multiple goroutines; each retrying task should
// own its own Schedule.
type Schedule struct {
	params    Params
	attempt   int
	elapsed   time.Duration
	exhausted bool
}

// New constructs a Schedule from params, per spec §4.1.
func New(params Params) *Schedule {
	return &Schedule{params: params.withDefaults()}
}

// Next returns the next backoff interval and true, or (0, false) once the
// schedule is exhausted (maximum-count reached, or timeout consumed).
func (s *Schedule) Next() (time.Duration, bool) {
	if s.exhausted {
		return 0, false
	}

	p := s.params

	if p.CountIsSet && p.MaximumCount == 0 {
		s.exhausted = true
		return 0, false
	}
	if p.MaximumCount > 0 && s.attempt >= p.MaximumCount {
		s.exhausted = true
		return 0, false
	}

	base := scaleDuration(p.InitialInterval, pow(p.BackoffFactor, s.attempt))
	if p.MaximumInterval > 0 && base > p.MaximumInterval {
		base = p.MaximumInterval
	}

	interval := base
	if p.JitterFactor != 0 {
		r := 0.0
		if p.Entropy != nil {
			r = clock.NextFloat01(p.Entropy)
		}
		interval = scaleDuration(base, 1+r*p.JitterFactor)
	}

	if p.Timeout > 0 {
		remaining := p.Timeout - s.elapsed
		if remaining <= 0 {
			s.exhausted = true
			return 0, false
		}
		if base >= remaining {
			// Clamp: cumulative sum must equal exactly Timeout.
			s.elapsed = p.Timeout
			s.attempt++
			s.exhausted = true
			return remaining, true
		}
		// Unjittered base fits; the jittered interval may still exceed
		// what's left, but spec only requires clamping "the final yielded
		// interval" for the timeout boundary — use the jittered value as
		// long as the unjittered base still fits inside the budget.
		s.elapsed += interval
	}

	s.attempt++
	return interval, true
}

// Reset restarts the schedule at attempt 0 with zero elapsed time.
func (s *Schedule) Reset() {
	s.attempt = 0
	s.elapsed = 0
	s.exhausted = false
}

func pow(base float64, n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= base
	}
	return result
}

func scaleDuration(d time.Duration, factor float64) time.Duration {
	return time.Duration(float64(d) * factor)
}
