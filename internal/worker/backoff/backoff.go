package backoff

import (
	"math"
	"time"
)

// Policy computes exponential retry delays: Base * 2^(attempt-1), capped at Max.
type Policy struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before the given attempt. Attempts start at 1; lower values yield zero.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 || p.Base <= 0 {
		return 0
	}

	delay := float64(p.Base) * math.Pow(2, float64(attempt-1))
	if p.Max > 0 && delay > float64(p.Max) {
		return p.Max
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(delay)
}

// Next returns when the given attempt may run if the previous one failed at now.
func (p Policy) Next(now time.Time, attempt int) time.Time {
	return now.Add(p.Delay(attempt))
}
