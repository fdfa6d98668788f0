package jobs

import (
	"math/rand"
	"time"
)

// MaxAttempts is the typical retry ceiling from spec.md §4.F; a job whose
// attempts reaches this without success is marked failed instead of
// requeued.
const MaxAttempts = 8

const (
	baseBackoff = 30 * time.Second
	maxBackoff  = time.Hour
)

// Backoff returns the delay before the n-th retry: min(30s·2^(n-1), 1h)
// with ±20% jitter (spec.md §4.F).
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := baseBackoff
	for i := 1; i < attempts && d < maxBackoff; i++ {
		d *= 2
		if d > maxBackoff {
			d = maxBackoff
			break
		}
	}
	jitter := 0.8 + rand.Float64()*0.4 // [0.8, 1.2)
	return time.Duration(float64(d) * jitter)
}
