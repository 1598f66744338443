package catalog_test

import (
	"context"
	"testing"

	"corral/internal/catalog"
	"corral/internal/testsupport"
)

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run, err := store.NewRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	if run.Stage != catalog.StageFetching {
		t.Fatalf("expected fetching stage, got %s", run.Stage)
	}

	if err := store.SetRunStage(ctx, "run-1", catalog.StageEnqueueing); err != nil {
		t.Fatalf("SetRunStage failed: %v", err)
	}
	if err := store.UpdateRunProgress(ctx, "run-1", 10, 4); err != nil {
		t.Fatalf("UpdateRunProgress failed: %v", err)
	}

	run, err = store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Stage != catalog.StageEnqueueing || run.TotalItems != 10 || run.ProcessedItems != 4 {
		t.Fatalf("unexpected run state: %#v", run)
	}
	if run.ProgressPercent != 40 {
		t.Fatalf("expected 40%% progress, got %f", run.ProgressPercent)
	}

	if err := store.CompleteRun(ctx, "run-1"); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}
	run, err = store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Stage != catalog.StageCompleted || !run.Stage.Terminal() {
		t.Fatalf("expected terminal completed stage, got %s", run.Stage)
	}
	if run.ProcessedItems != run.TotalItems {
		t.Fatalf("expected processed == total at completion, got %d/%d", run.ProcessedItems, run.TotalItems)
	}
}

func TestUpdateRunProgressIsMonotonic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.NewRun(ctx, "run-mono"); err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	if err := store.UpdateRunProgress(ctx, "run-mono", 10, 7); err != nil {
		t.Fatalf("UpdateRunProgress failed: %v", err)
	}
	// A stale writer reporting an older count must not regress the counter.
	if err := store.UpdateRunProgress(ctx, "run-mono", 10, 3); err != nil {
		t.Fatalf("UpdateRunProgress failed: %v", err)
	}

	run, err := store.GetRun(ctx, "run-mono")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.ProcessedItems != 7 {
		t.Fatalf("expected processed_items to hold at 7, got %d", run.ProcessedItems)
	}
}

func TestFailRunRecordsMessage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.NewRun(ctx, "run-err"); err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	if err := store.FailRun(ctx, "run-err", "content store unreachable"); err != nil {
		t.Fatalf("FailRun failed: %v", err)
	}

	run, err := store.GetRun(ctx, "run-err")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Stage != catalog.StageFailed {
		t.Fatalf("expected failed stage, got %s", run.Stage)
	}
	if run.ErrorMessage != "content store unreachable" {
		t.Fatalf("unexpected error message: %q", run.ErrorMessage)
	}
}

func TestGetRunMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	run, err := store.GetRun(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run != nil {
		t.Fatalf("expected nil run, got %#v", run)
	}
}
