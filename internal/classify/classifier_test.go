package classify_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"corral/internal/catalog"
	"corral/internal/classify"
	"corral/internal/contentstore"
	"corral/internal/testsupport"
)

func hashBytes(b []byte) (string, error) {
	return classify.HashReader(bytes.NewReader(b))
}

type fixture struct {
	catalog *catalog.Store
	content *contentstore.Local
	root    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	content, err := contentstore.NewLocal(cfg.Paths.WatchDir, 16)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	return &fixture{catalog: store, content: content, root: cfg.Paths.WatchDir}
}

func (f *fixture) classifier() *classify.Classifier {
	return classify.New(f.catalog, f.content, nil, 0)
}

// discoverItem enumerates the watch tree and returns the item at key.
func (f *fixture) discoverItem(t *testing.T, key string) contentstore.Item {
	t.Helper()
	it, err := f.content.Enumerate(context.Background(), "")
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}
	defer it.Close()
	for {
		item, ok, err := it.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ok {
			t.Fatalf("item %s not found in content store", key)
		}
		if item.Key == key {
			return item
		}
	}
}

func TestClassifyExactKeyMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testsupport.WriteFile(t, filepath.Join(f.root, "photos", "1.jpg"), []byte("image-bytes"))

	if _, _, err := f.catalog.InsertSparse(ctx, &catalog.Record{ObjectKey: "photos/1.jpg"}); err != nil {
		t.Fatalf("InsertSparse failed: %v", err)
	}

	result := f.classifier().Classify(ctx, f.discoverItem(t, "photos/1.jpg"))
	if result.Action != classify.ActionCreateNew {
		t.Fatalf("expected create_new, got %s", result.Action)
	}
	if result.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %f", result.Confidence)
	}
	if result.Matched == nil || result.Matched.ObjectKey != "photos/1.jpg" {
		t.Fatalf("expected matched record at same key, got %#v", result.Matched)
	}
}

func TestClassifyNoMatch(t *testing.T) {
	f := newFixture(t)
	testsupport.WriteFile(t, filepath.Join(f.root, "new.jpg"), []byte("fresh"))

	result := f.classifier().Classify(context.Background(), f.discoverItem(t, "new.jpg"))
	if result.Action != classify.ActionCreateNew {
		t.Fatalf("expected create_new, got %s", result.Action)
	}
	if result.Matched != nil {
		t.Fatalf("expected no match, got %#v", result.Matched)
	}
	if result.Reason != "no matching files found" {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
	if result.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %f", result.Confidence)
	}
}

func TestClassifyMoveByProviderID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	oldPath := filepath.Join(f.root, "photos", "1.jpg")
	testsupport.WriteFile(t, oldPath, []byte("image-bytes"))

	original := f.discoverItem(t, "photos/1.jpg")
	if original.ProviderFileID == "" {
		t.Skip("platform does not expose stable file ids")
	}
	if _, _, err := f.catalog.InsertSparse(ctx, &catalog.Record{
		ObjectKey:      "photos/1.jpg",
		ProviderFileID: original.ProviderFileID,
		SizeBytes:      original.SizeBytes,
	}); err != nil {
		t.Fatalf("InsertSparse failed: %v", err)
	}

	// Rename preserves the provider id; the old directory no longer lists it.
	newPath := filepath.Join(f.root, "archive", "1.jpg")
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatalf("rename: %v", err)
	}

	result := f.classifier().Classify(ctx, f.discoverItem(t, "archive/1.jpg"))
	if result.Action != classify.ActionMove {
		t.Fatalf("expected move, got %s (%s)", result.Action, result.Reason)
	}
	if result.Confidence != 0.95 {
		t.Fatalf("expected confidence 0.95, got %f", result.Confidence)
	}
	if result.Matched == nil || result.Matched.ObjectKey != "photos/1.jpg" {
		t.Fatalf("expected match on photos/1.jpg, got %#v", result.Matched)
	}
}

func TestClassifyMoveByContentHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := []byte("image-bytes-for-hash")

	// Catalog knows the file (and its hash) at its old location; the bytes now
	// live at a new key and the old directory is empty.
	testsupport.WriteFile(t, filepath.Join(f.root, "archive", "1.jpg"), content)
	if err := os.MkdirAll(filepath.Join(f.root, "photos"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	hash, err := hashBytes(content)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, _, err := f.catalog.InsertSparse(ctx, &catalog.Record{
		ObjectKey:   "photos/1.jpg",
		ContentHash: hash,
		SizeBytes:   int64(len(content)),
	}); err != nil {
		t.Fatalf("InsertSparse failed: %v", err)
	}

	result := f.classifier().Classify(ctx, f.discoverItem(t, "archive/1.jpg"))
	if result.Action != classify.ActionMove {
		t.Fatalf("expected move, got %s (%s)", result.Action, result.Reason)
	}
	if result.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %f", result.Confidence)
	}
	if result.Matched == nil || result.Matched.ObjectKey != "photos/1.jpg" {
		t.Fatalf("expected match on photos/1.jpg, got %#v", result.Matched)
	}
}

func TestClassifyCopyWhenOriginalPersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := []byte("image-bytes-duplicated")

	testsupport.WriteFile(t, filepath.Join(f.root, "photos", "1.jpg"), content)
	testsupport.WriteFile(t, filepath.Join(f.root, "backup", "1.jpg"), content)

	original := f.discoverItem(t, "photos/1.jpg")
	hash, err := hashBytes(content)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, _, err := f.catalog.InsertSparse(ctx, &catalog.Record{
		ObjectKey:   "photos/1.jpg",
		ContentHash: hash,
		SizeBytes:   original.SizeBytes,
	}); err != nil {
		t.Fatalf("InsertSparse failed: %v", err)
	}

	result := f.classifier().Classify(ctx, f.discoverItem(t, "backup/1.jpg"))
	if result.Action != classify.ActionCopy {
		t.Fatalf("expected copy, got %s (%s)", result.Action, result.Reason)
	}
	if result.Matched == nil || result.Matched.ObjectKey != "photos/1.jpg" {
		t.Fatalf("expected match on photos/1.jpg, got %#v", result.Matched)
	}
}

func TestClassifyPersistsLazyCandidateHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := []byte("same-bytes")

	testsupport.WriteFile(t, filepath.Join(f.root, "photos", "1.jpg"), content)
	testsupport.WriteFile(t, filepath.Join(f.root, "backup", "1.jpg"), content)

	original := f.discoverItem(t, "photos/1.jpg")
	rec, _, err := f.catalog.InsertSparse(ctx, &catalog.Record{
		ObjectKey: "photos/1.jpg",
		SizeBytes: original.SizeBytes,
	})
	if err != nil {
		t.Fatalf("InsertSparse failed: %v", err)
	}

	result := f.classifier().Classify(ctx, f.discoverItem(t, "backup/1.jpg"))
	if result.Action != classify.ActionCopy {
		t.Fatalf("expected copy, got %s (%s)", result.Action, result.Reason)
	}

	stored, err := f.catalog.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.ContentHash == "" {
		t.Fatal("expected lazily computed candidate hash to be persisted")
	}
}

func TestClassifyAmbiguousCandidatesFallThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Two cataloged records share the new item's size but neither matches its
	// bytes: fully ambiguous, falls through to create_new.
	testsupport.WriteFile(t, filepath.Join(f.root, "a.jpg"), []byte("aaaa"))
	testsupport.WriteFile(t, filepath.Join(f.root, "b.jpg"), []byte("bbbb"))
	testsupport.WriteFile(t, filepath.Join(f.root, "c.jpg"), []byte("cccc"))
	for _, key := range []string{"a.jpg", "b.jpg"} {
		if _, _, err := f.catalog.InsertSparse(ctx, &catalog.Record{
			ObjectKey: key,
			SizeBytes: 4,
		}); err != nil {
			t.Fatalf("InsertSparse failed: %v", err)
		}
	}

	result := f.classifier().Classify(ctx, f.discoverItem(t, "c.jpg"))
	if result.Action != classify.ActionCreateNew {
		t.Fatalf("expected create_new, got %s", result.Action)
	}
	if result.Reason != "no matching files found" {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
}

func TestClassifyDegradesOnStoreError(t *testing.T) {
	f := newFixture(t)
	testsupport.WriteFile(t, filepath.Join(f.root, "x.jpg"), []byte("x"))
	item := f.discoverItem(t, "x.jpg")

	clf := f.classifier()
	f.catalog.Close()

	result := clf.Classify(context.Background(), item)
	if result.Action != classify.ActionCreateNew {
		t.Fatalf("expected degraded create_new, got %s", result.Action)
	}
	if result.Confidence != 0 {
		t.Fatalf("expected confidence 0, got %f", result.Confidence)
	}
	if result.Reason == "" {
		t.Fatal("expected error reason")
	}
}
