package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"corral/internal/catalog"
	"corral/internal/classify"
	"corral/internal/config"
	"corral/internal/contentstore"
	"corral/internal/discovery"
	"corral/internal/notifications"
	"corral/internal/testsupport"
	"corral/internal/workqueue"
	"corral/internal/worklock"
)

type fixture struct {
	cfg     *config.Config
	orch    *Orchestrator
	catalog *catalog.Store
	queue   *workqueue.Queue
	locks   *worklock.Manager
	pool    *workqueue.Pool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	queue := testsupport.MustOpenQueue(t, cfg)

	locks, err := worklock.Open(cfg)
	if err != nil {
		t.Fatalf("worklock.Open: %v", err)
	}
	t.Cleanup(func() { locks.Close() })

	content, err := contentstore.NewLocal(cfg.Paths.WatchDir, cfg.Ingest.PageSize)
	if err != nil {
		t.Fatalf("contentstore.NewLocal: %v", err)
	}

	registry := discovery.NewRegistry()
	discovery.RegisterDefaults(registry)

	orch := New(cfg, store, content, registry, queue, locks, notifications.NewService(cfg), nil)

	pool := workqueue.NewPool(queue, nil, cfg.Workers.Count, time.Duration(cfg.Workers.PollIntervalSeconds)*time.Second)
	RegisterWorkers(pool, store, content, nil)

	return &fixture{cfg: cfg, orch: orch, catalog: store, queue: queue, locks: locks, pool: pool}
}

// startPool runs the worker pool for the duration of the test.
func (f *fixture) startPool(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.pool.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (f *fixture) watchPath(parts ...string) string {
	return filepath.Join(append([]string{f.cfg.Paths.WatchDir}, parts...)...)
}

func TestRunOnceEmptyStore(t *testing.T) {
	f := newFixture(t)

	run, err := f.orch.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if run.Stage != catalog.StageCompleted {
		t.Fatalf("stage = %s, want %s (error: %q)", run.Stage, catalog.StageCompleted, run.ErrorMessage)
	}
	if run.TotalItems != 0 || run.ProcessedItems != 0 {
		t.Fatalf("counts = %d/%d, want 0/0", run.ProcessedItems, run.TotalItems)
	}
	if run.ProgressPercent != 100 {
		t.Fatalf("progress = %v, want 100", run.ProgressPercent)
	}
}

func TestRunOnceCatalogsNewItems(t *testing.T) {
	f := newFixture(t)
	f.startPool(t)

	testsupport.WriteFile(t, f.watchPath("sunset.jpg"), []byte("jpeg bytes"))
	testsupport.WriteFile(t, f.watchPath("clips", "birthday-party.mp4"), []byte("mp4 bytes"))
	testsupport.WriteFile(t, f.watchPath("scans", "receipt_2024.png"), []byte("png bytes"))
	testsupport.WriteFile(t, f.watchPath("readme.txt"), []byte("not media"))

	run, err := f.orch.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if run.Stage != catalog.StageCompleted {
		t.Fatalf("stage = %s, want %s (error: %q)", run.Stage, catalog.StageCompleted, run.ErrorMessage)
	}
	if run.TotalItems != 3 || run.ProcessedItems != 3 {
		t.Fatalf("counts = %d/%d, want 3/3", run.ProcessedItems, run.TotalItems)
	}

	ctx := context.Background()
	for key, title := range map[string]string{
		"sunset.jpg":               "Sunset",
		"clips/birthday-party.mp4": "Birthday Party",
		"scans/receipt_2024.png":   "Receipt 2024",
	} {
		rec, err := f.catalog.FindByKey(ctx, key)
		if err != nil {
			t.Fatalf("FindByKey(%s): %v", key, err)
		}
		if rec == nil {
			t.Fatalf("no record for %s", key)
		}
		if rec.Status != catalog.StatusCompleted {
			t.Errorf("%s status = %s, want %s", key, rec.Status, catalog.StatusCompleted)
		}
		if rec.ContentHash == "" {
			t.Errorf("%s has no content hash", key)
		}
		if got := rec.Metadata["display_title"]; got != title {
			t.Errorf("%s display_title = %q, want %q", key, got, title)
		}
	}

	if rec, err := f.catalog.FindByKey(ctx, "readme.txt"); err != nil {
		t.Fatalf("FindByKey(readme.txt): %v", err)
	} else if rec != nil {
		t.Fatal("unsupported file was cataloged")
	}
}

func TestRunOnceSkipsCompletedRecords(t *testing.T) {
	f := newFixture(t)
	f.startPool(t)

	testsupport.WriteFile(t, f.watchPath("sunset.jpg"), []byte("jpeg bytes"))

	ctx := context.Background()
	if _, err := f.orch.RunOnce(ctx); err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}

	run, err := f.orch.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if run.Stage != catalog.StageCompleted {
		t.Fatalf("stage = %s, want %s (error: %q)", run.Stage, catalog.StageCompleted, run.ErrorMessage)
	}
	if run.TotalItems != 1 || run.ProcessedItems != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", run.ProcessedItems, run.TotalItems)
	}

	records, err := f.catalog.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("record count = %d, want 1", len(records))
	}
}

func TestRunOnceTracksMoves(t *testing.T) {
	f := newFixture(t)
	f.startPool(t)

	testsupport.WriteFile(t, f.watchPath("inbox", "sunset.jpg"), []byte("jpeg bytes"))

	ctx := context.Background()
	if _, err := f.orch.RunOnce(ctx); err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}

	if err := os.MkdirAll(f.watchPath("photos"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Rename(f.watchPath("inbox", "sunset.jpg"), f.watchPath("photos", "sunset.jpg")); err != nil {
		t.Fatalf("rename: %v", err)
	}

	run, err := f.orch.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if run.Stage != catalog.StageCompleted {
		t.Fatalf("stage = %s, want %s (error: %q)", run.Stage, catalog.StageCompleted, run.ErrorMessage)
	}

	records, err := f.catalog.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("record count = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.ObjectKey != "photos/sunset.jpg" {
		t.Fatalf("object key = %q, want photos/sunset.jpg", rec.ObjectKey)
	}
	if rec.MovedFrom != "inbox/sunset.jpg" {
		t.Errorf("moved_from = %q, want inbox/sunset.jpg", rec.MovedFrom)
	}
	if len(rec.PreviousKeys) != 1 || rec.PreviousKeys[0] != "inbox/sunset.jpg" {
		t.Errorf("previous keys = %v, want [inbox/sunset.jpg]", rec.PreviousKeys)
	}
	if rec.IsCopy {
		t.Error("moved record flagged as copy")
	}
	if rec.Status != catalog.StatusCompleted {
		t.Errorf("status = %s, want %s", rec.Status, catalog.StatusCompleted)
	}
}

func TestRunOnceCatalogsCopies(t *testing.T) {
	f := newFixture(t)
	f.startPool(t)

	content := []byte("identical jpeg bytes")
	testsupport.WriteFile(t, f.watchPath("sunset.jpg"), content)

	ctx := context.Background()
	if _, err := f.orch.RunOnce(ctx); err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}

	testsupport.WriteFile(t, f.watchPath("backup", "sunset.jpg"), content)

	if _, err := f.orch.RunOnce(ctx); err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}

	rec, err := f.catalog.FindByKey(ctx, "backup/sunset.jpg")
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if rec == nil {
		t.Fatal("copy was not cataloged")
	}
	if !rec.IsCopy {
		t.Error("copy record not flagged as copy")
	}
	if got := rec.Metadata["copied_from"]; got != "sunset.jpg" {
		t.Errorf("copied_from = %q, want sunset.jpg", got)
	}

	original, err := f.catalog.FindByKey(ctx, "sunset.jpg")
	if err != nil {
		t.Fatalf("FindByKey original: %v", err)
	}
	if original == nil || original.IsCopy {
		t.Fatal("original record missing or flagged as copy")
	}
	if rec.ContentHash != original.ContentHash {
		t.Errorf("copy hash %q differs from original %q", rec.ContentHash, original.ContentHash)
	}
}

func TestBeginRejectsConcurrentRuns(t *testing.T) {
	f := newFixture(t)

	ctx := context.Background()
	token, err := f.locks.TryAcquire(ctx, LockKey, time.Minute)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	defer f.locks.Release(ctx, token)

	if _, err := f.orch.Begin(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("Begin error = %v, want ErrAlreadyRunning", err)
	}

	runs, err := f.catalog.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("rejected start created %d run rows", len(runs))
	}
}

func TestBeginRunsInBackground(t *testing.T) {
	f := newFixture(t)
	f.startPool(t)

	testsupport.WriteFile(t, f.watchPath("sunset.jpg"), []byte("jpeg bytes"))

	ctx := context.Background()
	run, err := f.orch.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if run.Stage != catalog.StageFetching {
		t.Fatalf("initial stage = %s, want %s", run.Stage, catalog.StageFetching)
	}

	f.orch.Wait()

	final, err := f.catalog.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if final == nil || final.Stage != catalog.StageCompleted {
		t.Fatalf("final run = %+v, want completed", final)
	}

	// The lock must be free again once the run ends.
	token, err := f.locks.TryAcquire(ctx, LockKey, time.Minute)
	if err != nil {
		t.Fatalf("lock still held after run: %v", err)
	}
	f.locks.Release(ctx, token)
}

func TestShutdownAbortsBackgroundRun(t *testing.T) {
	// No pool is started: the queued job can never finish, so the run stays
	// in waiting_for_jobs until Shutdown interrupts it.
	f := newFixture(t)
	testsupport.WriteFile(t, f.watchPath("sunset.jpg"), []byte("jpeg bytes"))

	ctx := context.Background()
	run, err := f.orch.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		current, err := f.catalog.GetRun(ctx, run.ID)
		if err != nil {
			t.Fatalf("GetRun: %v", err)
		}
		if current.Stage == catalog.StageWaitingForJobs {
			break
		}
		if current.Stage.Terminal() {
			t.Fatalf("run reached %s without a worker pool", current.Stage)
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never reached waiting_for_jobs, stuck at %s", current.Stage)
		}
		time.Sleep(10 * time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.orch.Shutdown()
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Shutdown did not return while jobs were outstanding")
	}

	final, err := f.catalog.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if final.Stage != catalog.StageFailed {
		t.Fatalf("stage = %s, want %s", final.Stage, catalog.StageFailed)
	}

	token, err := f.locks.TryAcquire(ctx, LockKey, time.Minute)
	if err != nil {
		t.Fatalf("lock still held after shutdown: %v", err)
	}
	f.locks.Release(ctx, token)
}

func TestDispatchCheckpointsQueuedItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testsupport.WriteFile(t, f.watchPath("sunset.jpg"), []byte("jpeg bytes"))

	run, err := f.catalog.NewRun(ctx, "run-checkpoint")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	tracker := newProgress(f.catalog, f.orch.logger, run.ID)

	// Queuing an item does not change the counters, but it must still touch
	// the durable run row.
	time.Sleep(20 * time.Millisecond)
	handles := f.orch.dispatch(ctx, f.orch.logger, tracker, []intent{{
		item: discovery.Item{
			Item: contentstore.Item{Key: "sunset.jpg", SizeBytes: 10},
			Task: discovery.TaskIngestMedia,
		},
		result: classify.Result{Action: classify.ActionCreateNew, Confidence: 1},
	}})
	if len(handles) != 1 {
		t.Fatalf("handles = %d, want 1", len(handles))
	}

	after, err := f.catalog.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if !after.UpdatedAt.After(run.UpdatedAt) {
		t.Fatal("successful queue submission did not checkpoint the run row")
	}
}

func TestDisplayTitle(t *testing.T) {
	cases := map[string]string{
		"photos/summer-trip_2024.jpg": "Summer Trip 2024",
		"a.mp4":                       "A",
		"nested/dir/some.file.name":   "Some File",
	}
	for key, want := range cases {
		if got := DisplayTitle(key); got != want {
			t.Errorf("DisplayTitle(%q) = %q, want %q", key, got, want)
		}
	}
}
