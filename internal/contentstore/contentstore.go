package contentstore

import (
	"context"
	"io"
	"time"
)

// Item describes one object observed in the content store during enumeration.
// Items are ephemeral: they are produced per enumeration call and never
// persisted as-is.
type Item struct {
	// Key is the store-relative, slash-separated path of the object.
	Key string
	// SizeBytes is the object's size at observation time.
	SizeBytes int64
	// ModifiedAt is the object's last-modified timestamp.
	ModifiedAt time.Time
	// ProviderFileID is a stable identifier assigned by the store that
	// survives renames, when the store exposes one. Empty otherwise.
	ProviderFileID string
	// MediaType is the object's detected media type, e.g. "image/jpeg".
	// Empty when the type could not be determined.
	MediaType string
}

// Entry is one name within a directory listing.
type Entry struct {
	Name  string
	IsDir bool
}

// Iterator lazily yields items from an enumeration. Implementations must not
// buffer the full item set: stores may hold hundreds of thousands of entries.
type Iterator interface {
	// Next returns the next item. ok is false once the sequence is exhausted.
	Next(ctx context.Context) (item Item, ok bool, err error)
	// Close releases any resources held by the iterator.
	Close() error
}

// Store is the external content source files are ingested from.
type Store interface {
	// List returns the immediate entries of the directory at prefix.
	List(ctx context.Context, prefix string) ([]Entry, error)
	// Enumerate streams every object under prefix (the whole store when
	// prefix is empty). Each call starts a fresh enumeration.
	Enumerate(ctx context.Context, prefix string) (Iterator, error)
	// Open returns a reader over the full bytes of the object at key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
