package contentstore_test

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"testing"

	"corral/internal/contentstore"
	"corral/internal/testsupport"
)

func collectKeys(t *testing.T, store contentstore.Store, prefix string) []string {
	t.Helper()
	it, err := store.Enumerate(context.Background(), prefix)
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}
	defer it.Close()

	var keys []string
	for {
		item, ok, err := it.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ok {
			break
		}
		keys = append(keys, item.Key)
	}
	sort.Strings(keys)
	return keys
}

func TestEnumerateWalksTree(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "photos", "1.jpg"), []byte("one"))
	testsupport.WriteFile(t, filepath.Join(root, "photos", "sub", "2.png"), []byte("two"))
	testsupport.WriteFile(t, filepath.Join(root, "video.mkv"), []byte("three"))

	// A page size of 1 forces multiple ReadDir calls per directory.
	store, err := contentstore.NewLocal(root, 1)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	keys := collectKeys(t, store, "")
	want := []string{"photos/1.jpg", "photos/sub/2.png", "video.mkv"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %v", len(want), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("expected keys %v, got %v", want, keys)
		}
	}
}

func TestEnumerateWithPrefix(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "photos", "1.jpg"), []byte("one"))
	testsupport.WriteFile(t, filepath.Join(root, "other", "2.jpg"), []byte("two"))

	store, err := contentstore.NewLocal(root, 16)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	keys := collectKeys(t, store, "photos")
	if len(keys) != 1 || keys[0] != "photos/1.jpg" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestEnumerateIsRestartable(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "a.jpg"), []byte("a"))
	testsupport.WriteFile(t, filepath.Join(root, "b.jpg"), []byte("b"))

	store, err := contentstore.NewLocal(root, 16)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	first := collectKeys(t, store, "")
	second := collectKeys(t, store, "")
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected both passes to see 2 items, got %v then %v", first, second)
	}
}

func TestItemCarriesMetadata(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "pic.jpg"), []byte("content"))

	store, err := contentstore.NewLocal(root, 16)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	it, err := store.Enumerate(context.Background(), "")
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}
	defer it.Close()

	item, ok, err := it.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected one item, ok=%v err=%v", ok, err)
	}
	if item.SizeBytes != int64(len("content")) {
		t.Fatalf("unexpected size: %d", item.SizeBytes)
	}
	if item.MediaType != "image/jpeg" {
		t.Fatalf("unexpected media type: %q", item.MediaType)
	}
	if item.ModifiedAt.IsZero() {
		t.Fatal("expected modified time")
	}
	if item.ProviderFileID == "" {
		t.Fatal("expected provider file id on local filesystem")
	}
}

func TestListAndOpen(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "photos", "1.jpg"), []byte("payload"))

	store, err := contentstore.NewLocal(root, 16)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	entries, err := store.List(context.Background(), "photos")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "1.jpg" || entries[0].IsDir {
		t.Fatalf("unexpected entries: %#v", entries)
	}

	rc, err := store.Open(context.Background(), "photos/1.jpg")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestOpenRejectsEscapingKeys(t *testing.T) {
	store, err := contentstore.NewLocal(t.TempDir(), 16)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	if _, err := store.Open(context.Background(), "../etc/passwd"); err == nil {
		t.Fatal("expected error for escaping key")
	}
}
