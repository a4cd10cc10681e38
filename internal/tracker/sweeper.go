package tracker

import (
	"context"
	"log/slog"
	"time"
)

// Sweep removes jobs completed more than retention ago.
func (t *Tracker) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	return t.store.Sweep(ctx, t.now().Add(-retention))
}

// RunSweeper sweeps every interval until ctx is done.
func (t *Tracker) RunSweeper(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := t.Sweep(ctx, retention)
			if err != nil {
				slog.WarnContext(ctx, "rocrate_exporter.tracker.sweep_failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				slog.DebugContext(ctx, "rocrate_exporter.tracker.swept", slog.Int("jobs", n))
			}
		}
	}
}
