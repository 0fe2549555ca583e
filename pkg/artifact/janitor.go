package artifact

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often the janitor sweeps.
const DefaultSweepInterval = time.Hour

// StartJanitor runs a background goroutine that sweeps the artifact
// directory on a fixed interval for the lifetime of the process. It is
// started once at process start and stops when ctx is canceled. The sweep
// shares no locks with request handling, so it never blocks it.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Artifact janitor started", "interval", interval, "ttl", m.ttl)

		for {
			select {
			case <-ticker.C:
				removed, err := m.Sweep()
				if err != nil {
					slog.Error("Artifact sweep failed", "error", err)
					continue
				}
				if removed > 0 {
					slog.Info("Artifact sweep removed expired audio", "count", removed)
				}
			case <-ctx.Done():
				slog.Info("Artifact janitor shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
