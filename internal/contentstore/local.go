package contentstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Local serves a directory tree on the local filesystem (or a sync-provider
// mount) as a content store. Object keys are paths relative to the root.
type Local struct {
	root     string
	pageSize int
}

// NewLocal constructs a Local store rooted at dir. pageSize caps how many
// directory entries are read per syscall during enumeration.
func NewLocal(dir string, pageSize int) (*Local, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("content store root is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve content store root: %w", err)
	}
	if pageSize <= 0 {
		pageSize = 512
	}
	return &Local{root: abs, pageSize: pageSize}, nil
}

// Root returns the absolute directory the store serves.
func (l *Local) Root() string {
	return l.root
}

func (l *Local) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." {
		return l.root, nil
	}
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("key %q escapes content store root", key)
	}
	return filepath.Join(l.root, cleaned), nil
}

// List returns the immediate entries of the directory at prefix.
func (l *Local) List(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := l.resolve(prefix)
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		entries = append(entries, Entry{Name: de.Name(), IsDir: de.IsDir()})
	}
	return entries, nil
}

// Open returns a reader over the object at key.
func (l *Local) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return file, nil
}

// Enumerate streams every regular file under prefix. Directories are read in
// pages so the full tree is never held in memory.
func (l *Local) Enumerate(ctx context.Context, prefix string) (Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := l.resolve(prefix)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", prefix, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("enumerate %s: not a directory", prefix)
	}

	it := &localIterator{store: l}
	if err := it.push(dir, strings.Trim(filepath.ToSlash(prefix), "/")); err != nil {
		return nil, err
	}
	return it, nil
}

type openDir struct {
	file    *os.File
	rel     string
	pending []fs.DirEntry
}

type localIterator struct {
	store *Local
	stack []*openDir
}

func (it *localIterator) push(path, rel string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open directory %s: %w", rel, err)
	}
	it.stack = append(it.stack, &openDir{file: file, rel: rel})
	return nil
}

func (it *localIterator) Next(ctx context.Context) (Item, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Item{}, false, err
		}
		if len(it.stack) == 0 {
			return Item{}, false, nil
		}

		top := it.stack[len(it.stack)-1]
		if len(top.pending) == 0 {
			entries, err := top.file.ReadDir(it.store.pageSize)
			if errors.Is(err, io.EOF) || (err == nil && len(entries) == 0) {
				_ = top.file.Close()
				it.stack = it.stack[:len(it.stack)-1]
				continue
			}
			if err != nil {
				return Item{}, false, fmt.Errorf("read directory %s: %w", top.rel, err)
			}
			top.pending = entries
		}

		entry := top.pending[0]
		top.pending = top.pending[1:]

		rel := entry.Name()
		if top.rel != "" {
			rel = top.rel + "/" + entry.Name()
		}

		if entry.IsDir() {
			if err := it.push(filepath.Join(it.store.root, filepath.FromSlash(rel)), rel); err != nil {
				return Item{}, false, err
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// The file disappeared between listing and stat. Skip it.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Item{}, false, fmt.Errorf("stat %s: %w", rel, err)
		}

		return Item{
			Key:            rel,
			SizeBytes:      info.Size(),
			ModifiedAt:     info.ModTime().UTC(),
			ProviderFileID: providerFileID(info),
			MediaType:      DetectMediaType(rel),
		}, true, nil
	}
}

func (it *localIterator) Close() error {
	var firstErr error
	for _, dir := range it.stack {
		if err := dir.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	it.stack = nil
	return firstErr
}

// providerFileID derives a rename-stable identifier from the inode when the
// platform exposes one.
func providerFileID(info fs.FileInfo) string {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return "ino-" + strconv.FormatUint(uint64(stat.Ino), 10)
	}
	return ""
}

// The stdlib mime table only ships a handful of web types; the rest come from
// /etc/mime.types, which is absent on minimal hosts. Pin the media extensions
// Corral handles so detection does not depend on the host.
func init() {
	for ext, mediaType := range map[string]string{
		".tif":  "image/tiff",
		".tiff": "image/tiff",
		".mp4":  "video/mp4",
		".m4v":  "video/mp4",
		".mov":  "video/quicktime",
		".webm": "video/webm",
		".mkv":  "video/x-matroska",
		".mp3":  "audio/mpeg",
		".flac": "audio/flac",
		".wav":  "audio/wav",
	} {
		_ = mime.AddExtensionType(ext, mediaType)
	}
}

// DetectMediaType maps a key's extension to a media type, e.g. "image/jpeg".
// Returns the bare type without parameters, or empty when unknown.
func DetectMediaType(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	if ext == "" {
		return ""
	}
	mediaType := mime.TypeByExtension(ext)
	if mediaType == "" {
		return ""
	}
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	return strings.TrimSpace(mediaType)
}
