package index

import (
	"context"
	"time"
)

// RetryPolicy bounds the list-after-write retry loop: serverless vector
// indexes may briefly return zero results for a namespace that was just
// written to. The policy is deliberately tiny — fixed attempts, fixed delay —
// because it papers over a consistency window, not over outages.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Defaults to 3 if zero.
	MaxAttempts int

	// Delay is the fixed pause between attempts. Defaults to 2s if zero.
	Delay time.Duration

	// Sleep pauses for the given duration. If nil, a context-aware
	// time.Sleep equivalent is used. Tests inject a recorder here so the
	// retry loop runs without wall-clock delays.
	Sleep func(ctx context.Context, d time.Duration)
}

// withDefaults returns a copy of p with zero values replaced.
func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Delay <= 0 {
		p.Delay = 2 * time.Second
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	return p
}

// sleepContext sleeps for d or until ctx is cancelled, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
