package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"corral/internal/catalog"
	"corral/internal/config"
	"corral/internal/ingest"
	"corral/internal/logging"
	"corral/internal/notifications"
	"corral/internal/worklock"
	"corral/internal/workqueue"
)

// Daemon coordinates the worker pool, the ingestion orchestrator, and the
// HTTP API, and enforces single-instance execution per data directory.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	catalog      *catalog.Store
	queue        *workqueue.Queue
	locks        *worklock.Manager
	orchestrator *ingest.Orchestrator
	pool         *workqueue.Pool
	notifier     notifications.Service

	lockPath string
	lock     *flock.Flock

	api *apiServer

	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	poolDone chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	CatalogDBPath string
	LockFilePath  string
	QueuePending  int
	QueueRunning  int
	QueueFinished int
	LatestRun     *catalog.Run
}

// New constructs a daemon with initialized dependencies.
func New(
	cfg *config.Config,
	catalogStore *catalog.Store,
	queue *workqueue.Queue,
	locks *worklock.Manager,
	orchestrator *ingest.Orchestrator,
	pool *workqueue.Pool,
	notifier notifications.Service,
	logger *slog.Logger,
) (*Daemon, error) {
	if cfg == nil || catalogStore == nil || queue == nil || locks == nil || orchestrator == nil || pool == nil {
		return nil, errors.New("daemon requires config, catalog, queue, locks, orchestrator, and pool")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "corrald.lock")
	d := &Daemon{
		cfg:          cfg,
		logger:       logger,
		catalog:      catalogStore,
		queue:        queue,
		locks:        locks,
		orchestrator: orchestrator,
		pool:         pool,
		notifier:     notifier,
		lockPath:     lockPath,
		lock:         flock.New(lockPath),
	}

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the instance lock, launches the worker pool, and begins
// serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return errors.New("another corral daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.poolDone = make(chan struct{})
	go func() {
		defer close(d.poolDone)
		if err := d.pool.Run(d.ctx); err != nil {
			d.logger.Error("worker pool exited", logging.Error(err))
		}
	}()

	if err := d.api.start(d.ctx); err != nil {
		d.cancel()
		<-d.poolDone
		_ = d.lock.Unlock()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("corral daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	// Abort any in-flight run before the workers go away: the orchestrator
	// would otherwise wait on job handles nothing will ever finish.
	d.orchestrator.Shutdown()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	<-d.poolDone
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release instance lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("corral daemon stopped")
}

// Close stops the daemon and releases its stores.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if err := d.queue.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := d.locks.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := d.catalog.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Addr returns the API listen address, available once Start succeeds.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// StartIngest triggers a background ingestion run.
func (d *Daemon) StartIngest(ctx context.Context) (*catalog.Run, error) {
	return d.orchestrator.Begin(ctx)
}

// Status reports current daemon state.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		CatalogDBPath: d.cfg.DatabasePath(),
		LockFilePath:  d.lockPath,
	}

	pending, running, finished, err := d.queue.Counts(ctx)
	if err != nil {
		d.logger.Warn("failed to read queue counts", logging.Error(err))
	} else {
		status.QueuePending = pending
		status.QueueRunning = running
		status.QueueFinished = finished
	}

	runs, err := d.catalog.ListRuns(ctx, 1)
	if err != nil {
		d.logger.Warn("failed to read latest run", logging.Error(err))
	} else if len(runs) > 0 {
		status.LatestRun = runs[0]
	}
	return status
}

// TestNotification sends a test message through the configured notifier.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
