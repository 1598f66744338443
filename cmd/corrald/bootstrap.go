package main

import (
	"log/slog"
	"time"

	"corral/internal/catalog"
	"corral/internal/config"
	"corral/internal/contentstore"
	"corral/internal/daemon"
	"corral/internal/discovery"
	"corral/internal/ingest"
	"corral/internal/notifications"
	"corral/internal/workqueue"
	"corral/internal/worklock"
)

// bootstrap opens the stores and wires the orchestrator, worker pool, and
// daemon together.
func bootstrap(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	store, err := catalog.Open(cfg)
	if err != nil {
		return nil, err
	}

	queue, err := workqueue.Open(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	locks, err := worklock.Open(cfg)
	if err != nil {
		queue.Close()
		store.Close()
		return nil, err
	}

	content, err := contentstore.NewLocal(cfg.Paths.WatchDir, cfg.Ingest.PageSize)
	if err != nil {
		locks.Close()
		queue.Close()
		store.Close()
		return nil, err
	}

	registry := discovery.NewRegistry()
	discovery.RegisterDefaults(registry)

	notifier := notifications.NewService(cfg)
	orchestrator := ingest.New(cfg, store, content, registry, queue, locks, notifier, logger)

	pool := workqueue.NewPool(queue, logger, cfg.Workers.Count, time.Duration(cfg.Workers.PollIntervalSeconds)*time.Second)
	ingest.RegisterWorkers(pool, store, content, logger)

	return daemon.New(cfg, store, queue, locks, orchestrator, pool, notifier, logger)
}
