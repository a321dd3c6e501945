package coordinator

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// linearBackOff implements backoff.BackOff as `delay × attempt`, the
// schedule spec §4.1 specifies for sync retries ("delay retryDelay ×
// attempt ... up to maxRetryAttempts").
type linearBackOff struct {
	delay time.Duration
	attempt int
	max int
}

func newLinearBackOff(delay time.Duration, maxAttempts int) *linearBackOff {
	return &linearBackOff{delay: delay, max: maxAttempts}
}

// NextBackOff returns the next retry delay, or backoff.Stop once max
// attempts has been exceeded.
func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	if b.attempt > b.max {
		return backoff.Stop
	}
	return b.delay * time.Duration(b.attempt)
}

// Reset restarts the attempt counter.
func (b *linearBackOff) Reset() { b.attempt = 0 }

// nextRetryDelay advances a linearBackOff primed with op's already-spent
// attempts and returns the wait before its next attempt, or ok=false once
// maxAttempts is exhausted. Using backoff.BackOff here (rather than
// recomputing delay*attempt inline) keeps the retry schedule swappable for
// an exponential one later without touching the engine's call site.
func nextRetryDelay(delay time.Duration, maxAttempts, spentAttempts int) (time.Duration, bool) {
	b := newLinearBackOff(delay, maxAttempts)
	b.attempt = spentAttempts
	wait := b.NextBackOff()
	if wait == backoff.Stop {
		return 0, false
	}
	return wait, true
}
