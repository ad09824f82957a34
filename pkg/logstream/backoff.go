package logstream

import (
	"math/rand"
	"time"
)

// Backoff computes reconnect delays: capped exponential growth, jittered by
// a uniform factor in [0.5, 1.0) to avoid synchronized retries across many
// open streams. The jitter intentionally draws from the shared math/rand
// source so independent clients decorrelate without coordination.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// Step returns the pre-jitter delay for the given zero-based attempt:
// min(Base * 2^attempt, Cap).
func (b Backoff) Step(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Shifting past 62 bits overflows time.Duration long before any
	// realistic cap; clamp straight to Cap.
	if attempt >= 62 {
		return b.Cap
	}
	d := b.Base << uint(attempt)
	if d <= 0 || d > b.Cap {
		return b.Cap
	}
	return d
}

// Delay returns the jittered delay for the given zero-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	step := b.Step(attempt)
	return time.Duration(float64(step) * (0.5 + 0.5*rand.Float64()))
}
