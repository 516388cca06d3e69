// Package retention periodically trims the dedup ledger.
package retention

import (
	"context"
	"log/slog"
	"time"
)

// Purger deletes ledger entries older than a cutoff.
type Purger interface {
	Purge(ctx context.Context, olderThan time.Time, recipientID *int64) (int64, error)
}

// Janitor purges ledger entries that fell out of the retention window.
type Janitor struct {
	purger    Purger
	retention time.Duration
	log       *slog.Logger
	tick      time.Duration
	now       func() time.Time
}

// New creates a Janitor that keeps retention worth of history and checks
// once a day.
func New(purger Purger, retention time.Duration, log *slog.Logger) *Janitor {
	return &Janitor{
		purger:    purger,
		retention: retention,
		log:       log,
		tick:      24 * time.Hour,
		now:       time.Now,
	}
}

// SetTickInterval overrides the default daily purge interval.
func (j *Janitor) SetTickInterval(d time.Duration) {
	if d > 0 {
		j.tick = d
	}
}

// Run purges immediately and then on every tick, blocking until ctx is
// cancelled.
func (j *Janitor) Run(ctx context.Context) {
	j.PurgeOnce(ctx)

	ticker := time.NewTicker(j.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.PurgeOnce(ctx)
		}
	}
}

// PurgeOnce removes entries older than the retention window and returns
// how many were deleted.
func (j *Janitor) PurgeOnce(ctx context.Context) int64 {
	cutoff := j.now().Add(-j.retention)
	n, err := j.purger.Purge(ctx, cutoff, nil)
	if err != nil {
		j.log.Error("purge ledger", "cutoff", cutoff, "error", err)
		return 0
	}
	if n > 0 {
		j.log.Info("purged ledger entries", "count", n, "cutoff", cutoff)
	}
	return n
}
