package queue

import (
	"math"
	"time"
)

// Backoff computes retry delays: Initial * 2^(attempt-1), capped at Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoff is 2s, 4s, 8s ... capped at 5m.
func DefaultBackoff() Backoff {
	return Backoff{Initial: 2 * time.Second, Max: 5 * time.Minute}
}

// Delay returns the wait before the next run after attempt attempts (1-indexed).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(b.Initial) * math.Pow(2, float64(attempt-1))
	if b.Max > 0 && delay > float64(b.Max) {
		return b.Max
	}
	return time.Duration(delay)
}
