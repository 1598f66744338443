package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"corral/internal/catalog"
	"corral/internal/classify"
	"corral/internal/config"
	"corral/internal/contentstore"
	"corral/internal/discovery"
	"corral/internal/logging"
	"corral/internal/notifications"
	"corral/internal/workqueue"
	"corral/internal/worklock"
)

// LockKey guards ingestion runs across every process sharing the catalog.
const LockKey = "ingest-run"

// ErrAlreadyRunning is returned when another run holds the ingest lock.
var ErrAlreadyRunning = errors.New("an ingestion run is already in progress")

// ErrLockUnavailable is returned when the lock store cannot be reached.
// Acquisition fails closed: callers treat this the same as a busy lock.
var ErrLockUnavailable = errors.New("failed to acquire ingest lock")

// Orchestrator composes discovery, classification, dispatch, and completion
// tracking into one lock-guarded ingestion run.
type Orchestrator struct {
	cfg        *config.Config
	catalog    *catalog.Store
	content    contentstore.Store
	discovery  *discovery.Service
	classifier *classify.Classifier
	queue      *workqueue.Queue
	locks      *worklock.Manager
	notifier   notifications.Service
	logger     *slog.Logger

	lease        time.Duration
	pollInterval time.Duration

	// runCtx bounds background runs to the orchestrator's lifetime instead of
	// the triggering request; Shutdown cancels it.
	runCtx  context.Context
	stopRun context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs an orchestrator wired to the given collaborators.
func New(
	cfg *config.Config,
	catalogStore *catalog.Store,
	content contentstore.Store,
	registry *discovery.Registry,
	queue *workqueue.Queue,
	locks *worklock.Manager,
	notifier notifications.Service,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldComponent, "ingest"))
	runCtx, stopRun := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:          cfg,
		catalog:      catalogStore,
		content:      content,
		discovery:    discovery.NewService(content, registry, logger),
		classifier:   classify.New(catalogStore, content, logger, cfg.Ingest.HashBufferKiB*1024),
		queue:        queue,
		locks:        locks,
		notifier:     notifier,
		logger:       logger,
		lease:        time.Duration(cfg.Ingest.LockLeaseSeconds) * time.Second,
		pollInterval: time.Duration(cfg.Ingest.PollIntervalSeconds) * time.Second,
		runCtx:       runCtx,
		stopRun:      stopRun,
	}
}

// Begin starts an ingestion run in the background and returns its durable run
// row for status polling. When the ingest lock is held elsewhere it returns
// ErrAlreadyRunning without touching any state.
func (o *Orchestrator) Begin(ctx context.Context) (*catalog.Run, error) {
	token, run, err := o.start(ctx)
	if err != nil {
		return nil, err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		// The run must survive the triggering request: only Shutdown
		// interrupts it.
		o.execute(o.runCtx, run.ID, token)
	}()
	return run, nil
}

// RunOnce performs a complete ingestion run synchronously and returns its
// terminal state.
func (o *Orchestrator) RunOnce(ctx context.Context) (*catalog.Run, error) {
	token, run, err := o.start(ctx)
	if err != nil {
		return nil, err
	}
	o.execute(ctx, run.ID, token)
	return o.catalog.GetRun(ctx, run.ID)
}

// Wait blocks until any background run started by Begin has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown aborts any in-flight background run and blocks until it has
// reached a terminal stage and released the ingest lock. An aborted run is
// marked failed; no further runs can start afterwards.
func (o *Orchestrator) Shutdown() {
	o.stopRun()
	o.wg.Wait()
}

func (o *Orchestrator) start(ctx context.Context) (*worklock.Token, *catalog.Run, error) {
	token, err := o.locks.TryAcquire(ctx, LockKey, o.lease)
	if errors.Is(err, worklock.ErrBusy) {
		return nil, nil, ErrAlreadyRunning
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrLockUnavailable, err)
	}

	run, err := o.catalog.NewRun(ctx, uuid.NewString())
	if err != nil {
		o.releaseLock(ctx, token)
		return nil, nil, fmt.Errorf("create run: %w", err)
	}
	return token, run, nil
}

// execute drives one run to a terminal stage. The lock is released on every
// path out of this function.
func (o *Orchestrator) execute(ctx context.Context, runID string, token *worklock.Token) {
	defer o.releaseLock(ctx, token)

	logger := o.logger.With(logging.String(logging.FieldRunID, runID))
	started := time.Now()

	if err := o.notifier.NotifyRunStarted(ctx, runID); err != nil {
		logger.Debug("run-started notification failed", logging.Error(err))
	}

	tracker := newProgress(o.catalog, logger, runID)

	intents, unsupported, err := o.fetch(ctx, logger, tracker)
	if err != nil {
		logger.Error("discovery failed", logging.Error(err))
		o.failRun(ctx, logger, runID, err)
		return
	}
	logger.Info("discovery finished",
		logging.Int("supported_items", tracker.total),
		logging.Int("unsupported_items", unsupported),
	)

	if err := o.catalog.SetRunStage(ctx, runID, catalog.StageEnqueueing); err != nil {
		o.failRun(ctx, logger, runID, err)
		return
	}
	handles := o.dispatch(ctx, logger, tracker, intents)

	if err := o.catalog.SetRunStage(ctx, runID, catalog.StageWaitingForJobs); err != nil {
		o.failRun(ctx, logger, runID, err)
		return
	}
	if err := o.awaitCompletion(ctx, logger, tracker, handles); err != nil {
		o.failRun(ctx, logger, runID, err)
		return
	}

	if err := o.catalog.CompleteRun(ctx, runID); err != nil {
		logger.Error("failed to mark run completed", logging.Error(err))
		return
	}
	logger.Info("ingestion run completed",
		logging.Int("total_items", tracker.total),
		logging.Duration("elapsed", time.Since(started)),
	)
	if err := o.notifier.NotifyRunCompleted(ctx, runID, tracker.total, time.Since(started)); err != nil {
		logger.Debug("run-completed notification failed", logging.Error(err))
	}
}

// fetch streams the content store through the classifier, collecting one
// dispatch intent per supported item. Only enumeration itself can fail here;
// classification errors degrade per item inside the classifier.
func (o *Orchestrator) fetch(ctx context.Context, logger *slog.Logger, tracker *progress) ([]intent, int, error) {
	it, err := o.discovery.Enumerate(ctx, "")
	if err != nil {
		return nil, 0, fmt.Errorf("enumerate content store: %w", err)
	}
	defer it.Close()

	var intents []intent
	for {
		item, ok, err := it.Next(ctx)
		if err != nil {
			return nil, it.Unsupported(), fmt.Errorf("enumerate content store: %w", err)
		}
		if !ok {
			return intents, it.Unsupported(), nil
		}

		result := o.classifier.Classify(ctx, item.Item)
		logger.Debug("classified item",
			logging.String(logging.FieldObjectKey, item.Key),
			logging.String("action", string(result.Action)),
			logging.Float64("confidence", result.Confidence),
			logging.String("reason", result.Reason),
		)

		intents = append(intents, intent{item: item, result: result})
		tracker.itemDiscovered(ctx)
	}
}

func (o *Orchestrator) failRun(ctx context.Context, logger *slog.Logger, runID string, cause error) {
	// The terminal write must land even when the run itself was canceled.
	ctx = context.WithoutCancel(ctx)
	if err := o.catalog.FailRun(ctx, runID, cause.Error()); err != nil {
		logger.Error("failed to mark run failed", logging.Error(err))
	}
	if err := o.notifier.NotifyRunFailed(ctx, runID, cause.Error()); err != nil {
		logger.Debug("run-failed notification failed", logging.Error(err))
	}
}

func (o *Orchestrator) releaseLock(ctx context.Context, token *worklock.Token) {
	// Release even when the run was canceled; otherwise the lease blocks new
	// runs until it expires.
	err := o.locks.Release(context.WithoutCancel(ctx), token)
	if errors.Is(err, worklock.ErrNotOwner) {
		o.logger.Warn("ingest lock was no longer owned at release; lease may have expired")
		return
	}
	if err != nil {
		o.logger.Warn("failed to release ingest lock", logging.Error(err))
	}
}
