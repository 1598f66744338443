package discovery_test

import (
	"context"
	"path/filepath"
	"testing"

	"corral/internal/contentstore"
	"corral/internal/discovery"
	"corral/internal/testsupport"
)

func TestRegistryLookup(t *testing.T) {
	reg := discovery.NewRegistry()
	reg.Register("image/jpeg", "ingest_media")
	reg.Register("IMAGE/PNG ", "ingest_media")

	if task, ok := reg.Lookup("image/jpeg"); !ok || task != "ingest_media" {
		t.Fatalf("unexpected lookup: %q %v", task, ok)
	}
	if _, ok := reg.Lookup("image/png"); !ok {
		t.Fatal("expected normalized registration to match")
	}
	if _, ok := reg.Lookup("application/pdf"); ok {
		t.Fatal("expected unregistered type to miss")
	}

	// Re-registration overrides.
	reg.Register("image/jpeg", "other_task")
	if task, _ := reg.Lookup("image/jpeg"); task != "other_task" {
		t.Fatalf("expected override, got %q", task)
	}
}

func TestEnumerateFiltersUnsupported(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "a.jpg"), []byte("a"))
	testsupport.WriteFile(t, filepath.Join(root, "b.png"), []byte("b"))
	testsupport.WriteFile(t, filepath.Join(root, "c.mp4"), []byte("c"))
	testsupport.WriteFile(t, filepath.Join(root, "notes.txt"), []byte("text"))

	store, err := contentstore.NewLocal(root, 16)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	reg := discovery.NewRegistry()
	discovery.RegisterDefaults(reg)

	svc := discovery.NewService(store, reg, nil)
	it, err := svc.Enumerate(context.Background(), "")
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}
	defer it.Close()

	var supported int
	for {
		item, ok, err := it.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ok {
			break
		}
		if item.Task != discovery.TaskIngestMedia {
			t.Fatalf("unexpected task %q for %s", item.Task, item.Key)
		}
		supported++
	}

	if supported != 3 {
		t.Fatalf("expected 3 supported items, got %d", supported)
	}
	if it.Unsupported() != 1 {
		t.Fatalf("expected 1 unsupported item, got %d", it.Unsupported())
	}
}
