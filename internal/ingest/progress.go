package ingest

import (
	"context"
	"log/slog"

	"corral/internal/catalog"
	"corral/internal/logging"
)

// progress tracks one run's item counters and persists them so external
// pollers see forward movement during the run, not just at the end.
// Persistence failures are logged and swallowed: progress is observability,
// never control flow.
type progress struct {
	store  *catalog.Store
	logger *slog.Logger
	runID  string

	total     int
	processed int
}

func newProgress(store *catalog.Store, logger *slog.Logger, runID string) *progress {
	return &progress{store: store, logger: logger, runID: runID}
}

// itemDiscovered counts one supported item during the fetching stage.
func (p *progress) itemDiscovered(ctx context.Context) {
	p.total++
	p.persist(ctx)
}

// itemsProcessed counts n items that reached their terminal outcome, whether
// they finished a queued job or were skipped at dispatch time.
func (p *progress) itemsProcessed(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	p.processed += n
	p.persist(ctx)
}

func (p *progress) persist(ctx context.Context) {
	if err := p.store.UpdateRunProgress(ctx, p.runID, p.total, p.processed); err != nil {
		p.logger.Warn("failed to persist run progress", logging.Error(err))
	}
}
