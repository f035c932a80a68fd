package worker

import (
	"context"
	"log/slog"
	"time"
)

// PersistFunc writes the current state somewhere durable.
type PersistFunc func() error

// StartSnapshotWorker calls persist every interval until ctx is done, then
// once more so the last changes are not lost. The returned channel closes
// after the final write.
func StartSnapshotWorker(ctx context.Context, interval time.Duration, persist PersistFunc, logger *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	if logger == nil {
		logger = slog.Default()
	}

	go func() {
		defer close(done)
		logger.Info("Snapshot worker started", "interval", interval)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runOnce(persist, logger)
			case <-ctx.Done():
				runOnce(persist, logger)
				logger.Info("Snapshot worker stopped")
				return
			}
		}
	}()

	return done
}

func runOnce(persist PersistFunc, logger *slog.Logger) {
	start := time.Now()
	if err := persist(); err != nil {
		logger.Error("Worker: snapshot failed", "error", err)
		return
	}
	logger.Debug("Worker: snapshot written", "took", time.Since(start))
}
