package workqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"corral/internal/logging"
)

// HandlerFunc processes one work item's payload.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Pool runs registered task handlers against the queue with a fixed number of
// workers. Handler failures are recorded on the item and never stop the pool.
type Pool struct {
	queue        *Queue
	logger       *slog.Logger
	handlers     map[string]HandlerFunc
	workers      int
	pollInterval time.Duration
}

// NewPool constructs a worker pool over the queue.
func NewPool(queue *Queue, logger *slog.Logger, workers int, pollInterval time.Duration) *Pool {
	if logger == nil {
		logger = logging.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Pool{
		queue:        queue,
		logger:       logger,
		handlers:     make(map[string]HandlerFunc),
		workers:      workers,
		pollInterval: pollInterval,
	}
}

// Register binds a task name to its handler. Registration happens during
// initialization, before Run.
func (p *Pool) Register(taskName string, handler HandlerFunc) {
	if taskName == "" || handler == nil {
		return
	}
	p.handlers[taskName] = handler
}

// Run blocks processing items until the context is canceled.
func (p *Pool) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		worker := i
		group.Go(func() error {
			p.runWorker(groupCtx, worker)
			return nil
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (p *Pool) runWorker(ctx context.Context, worker int) {
	logger := p.logger.With(logging.Int("worker", worker))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queue.claimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to claim work item", logging.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			p.sleep(ctx)
			continue
		}

		p.execute(ctx, logger, job)
	}
}

func (p *Pool) execute(ctx context.Context, logger *slog.Logger, job *Job) {
	handler, ok := p.handlers[job.Task]
	var handlerErr error
	if !ok {
		handlerErr = fmt.Errorf("no handler registered for task %q", job.Task)
	} else {
		handlerErr = handler(ctx, job.Payload)
	}

	if handlerErr != nil {
		logger.Warn("work item failed",
			logging.String(logging.FieldTask, job.Task),
			logging.String(logging.FieldHandle, job.Handle),
			logging.Error(handlerErr),
		)
	}

	if err := p.queue.finish(ctx, job.Handle, handlerErr); err != nil {
		logger.Error("failed to finish work item",
			logging.String(logging.FieldHandle, job.Handle),
			logging.Error(err),
		)
	}
}

func (p *Pool) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.pollInterval):
	}
}
