package station

import (
	"context"
	"log/slog"
	"time"
)

// Worker periodically rescores the whole directory so stations nobody
// interacts with still pick up resolved feedback and metadata changes.
type Worker struct {
	svc       *Service
	interval  time.Duration
	batchSize int
}

func NewWorker(svc *Service, interval time.Duration, batchSize int) *Worker {
	return &Worker{svc: svc, interval: interval, batchSize: batchSize}
}

// Run blocks until ctx is canceled. A non-positive interval disables the worker.
func (w *Worker) Run(ctx context.Context) {
	if w.interval <= 0 {
		slog.Info("quality recalculation worker disabled")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.Info("quality recalculation worker started", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	start := time.Now()
	processed, hidden, err := w.svc.RecalculateAll(ctx, w.batchSize)
	if err != nil && ctx.Err() == nil {
		slog.Error("bulk recalculation stopped", "error", err, "processed", processed)
		return
	}
	slog.Info("bulk recalculation complete",
		"processed", processed,
		"hidden", hidden,
		"took", time.Since(start).Round(time.Millisecond),
	)
}
