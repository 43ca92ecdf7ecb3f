package poller

import (
	"context"
	"time"
)

// DefaultInterval is the re-fetch cadence for the polling backstop.
const DefaultInterval = 4 * time.Second

// Scheduler re-runs a fetch on a fixed interval as the correctness backstop
// for realtime delivery gaps. The fetch feeds rows through the reconciler's
// idempotent merge, so repeated application of the same rows is harmless.
// Cancelling ctx stops the scheduler deterministically; owners cancel on
// scope change and teardown so timers never accumulate.
type Scheduler struct {
	interval time.Duration
	fetch    func(context.Context)
}

func New(interval time.Duration, fetch func(context.Context)) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{interval: interval, fetch: fetch}
}

// Run fetches once immediately, then on every tick until ctx is cancelled.
// Call it on its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	s.fetch(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.fetch(ctx)
		case <-ctx.Done():
			return
		}
	}
}
