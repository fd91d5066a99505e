package session

import (
	"context"
	"time"

	"github.com/banshee-data/aotrack/internal/monitoring"
	"github.com/banshee-data/aotrack/internal/timeutil"
)

// DefaultSweepInterval is how often the sweeper looks for idle sessions.
const DefaultSweepInterval = 10 * time.Minute

var sweepLogf = monitoring.Scoped("session sweeper")

// Sweeper periodically evicts idle sessions from a Store.
type Sweeper struct {
	Store    *Store
	Interval time.Duration
	Clock    timeutil.Clock
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (sw *Sweeper) Run(ctx context.Context) {
	interval := sw.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	clock := sw.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	sw.sweep()
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sweepLogf("stopped")
			return
		case <-ticker.C():
			sw.sweep()
		}
	}
}

func (sw *Sweeper) sweep() {
	if n := sw.Store.Sweep(); n > 0 {
		sweepLogf("evicted %d idle session(s), %d live", n, sw.Store.Len())
	}
}
