package testsupport

import (
	"testing"

	"corral/internal/catalog"
	"corral/internal/config"
	"corral/internal/workqueue"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenQueue opens a workqueue.Queue for tests and registers cleanup.
func MustOpenQueue(t testing.TB, cfg *config.Config) *workqueue.Queue {
	t.Helper()

	q, err := workqueue.Open(cfg)
	if err != nil {
		t.Fatalf("workqueue.Open: %v", err)
	}
	t.Cleanup(func() {
		q.Close()
	})
	return q
}
