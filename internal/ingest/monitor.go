package ingest

import (
	"context"
	"log/slog"
	"time"

	"corral/internal/logging"
	"corral/internal/workqueue"
)

// awaitCompletion polls the work queue until every dispatched handle reaches
// a terminal state. A handle the queue no longer knows about is treated as
// finished: losing visibility must not wedge the run forever.
func (o *Orchestrator) awaitCompletion(ctx context.Context, logger *slog.Logger, tracker *progress, handles []string) error {
	outstanding := make(map[string]struct{}, len(handles))
	for _, h := range handles {
		outstanding[h] = struct{}{}
	}

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for len(outstanding) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		resolved := 0
		for handle := range outstanding {
			status, err := o.queue.Status(ctx, handle)
			if err != nil {
				// Transient store trouble: keep the handle and retry next tick.
				logger.Warn("failed to poll job status",
					logging.String(logging.FieldHandle, handle),
					logging.Error(err),
				)
				continue
			}
			switch status {
			case workqueue.StatusFinished:
				delete(outstanding, handle)
				resolved++
			case workqueue.StatusUnknown:
				logger.Warn("job handle expired from queue bookkeeping; assuming finished",
					logging.String(logging.FieldHandle, handle),
				)
				delete(outstanding, handle)
				resolved++
			}
		}
		tracker.itemsProcessed(ctx, resolved)
	}
	return nil
}
