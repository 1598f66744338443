package discovery

import (
	"context"
	"log/slog"

	"corral/internal/contentstore"
	"corral/internal/logging"
)

// Item is a discovered object that has a registered handler.
type Item struct {
	contentstore.Item
	// Task is the work-queue task registered for the item's media type.
	Task string
}

// Service streams supported items out of the content store.
type Service struct {
	store    contentstore.Store
	registry *Registry
	logger   *slog.Logger
}

// NewService constructs a discovery service.
func NewService(store contentstore.Store, registry *Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{store: store, registry: registry, logger: logger}
}

// Enumerate begins a fresh, lazy enumeration under prefix. Items whose media
// type has no registered handler are filtered out and counted instead of
// propagated.
func (s *Service) Enumerate(ctx context.Context, prefix string) (*Iterator, error) {
	inner, err := s.store.Enumerate(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return &Iterator{inner: inner, registry: s.registry, logger: s.logger}, nil
}

// Iterator yields supported items one at a time.
type Iterator struct {
	inner       contentstore.Iterator
	registry    *Registry
	logger      *slog.Logger
	unsupported int
}

// Next returns the next supported item. ok is false once the store is exhausted.
func (it *Iterator) Next(ctx context.Context) (Item, bool, error) {
	for {
		raw, ok, err := it.inner.Next(ctx)
		if err != nil {
			return Item{}, false, err
		}
		if !ok {
			return Item{}, false, nil
		}

		task, supported := it.registry.Lookup(raw.MediaType)
		if !supported {
			it.unsupported++
			it.logger.Debug("skipping unsupported item",
				logging.String(logging.FieldObjectKey, raw.Key),
				logging.String("media_type", raw.MediaType),
			)
			continue
		}
		return Item{Item: raw, Task: task}, true, nil
	}
}

// Unsupported reports how many items were filtered out so far.
func (it *Iterator) Unsupported() int {
	return it.unsupported
}

// Close releases the underlying enumeration.
func (it *Iterator) Close() error {
	return it.inner.Close()
}
