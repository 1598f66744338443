package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"corral/internal/catalog"
	"corral/internal/classify"
	"corral/internal/contentstore"
	"corral/internal/discovery"
	"corral/internal/logging"
	"corral/internal/workqueue"
)

// RegisterWorkers binds the ingestion task handlers to the pool. The handlers
// are process-agnostic: any process with access to the catalog and content
// store can drain the queue.
func RegisterWorkers(pool *workqueue.Pool, catalogStore *catalog.Store, content contentstore.Store, logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	w := &workers{
		catalog: catalogStore,
		content: content,
		logger:  logger.With(logging.String(logging.FieldComponent, "workers")),
	}
	pool.Register(discovery.TaskIngestMedia, w.ingestMedia)
	pool.Register(discovery.TaskRelinkMedia, w.relinkMedia)
}

type workers struct {
	catalog *catalog.Store
	content contentstore.Store
	logger  *slog.Logger
}

// ingestMedia fully catalogs a new or copied object: content hash, media
// type, and a display title derived from the object key.
func (w *workers) ingestMedia(ctx context.Context, payload []byte) error {
	rec, err := w.load(ctx, payload)
	if err != nil {
		return err
	}
	if err := w.catalog.SetStatus(ctx, rec.ID, catalog.StatusProcessing); err != nil {
		return fmt.Errorf("mark record processing: %w", err)
	}

	if rec.ContentHash == "" {
		hash, err := w.hashObject(ctx, rec.ObjectKey)
		if err != nil {
			return w.fail(ctx, rec, fmt.Errorf("hash %s: %w", rec.ObjectKey, err))
		}
		rec.ContentHash = hash
	}

	enrichMetadata(rec)
	rec.Status = catalog.StatusCompleted
	if err := w.catalog.Update(ctx, rec); err != nil {
		return w.fail(ctx, rec, fmt.Errorf("store record: %w", err))
	}
	w.logger.Info("cataloged object",
		logging.String(logging.FieldObjectKey, rec.ObjectKey),
		logging.Bool("copy", rec.IsCopy),
	)
	return nil
}

// relinkMedia refreshes derived metadata after a move. The record already
// carries its new key and history; only the key-derived fields go stale.
func (w *workers) relinkMedia(ctx context.Context, payload []byte) error {
	rec, err := w.load(ctx, payload)
	if err != nil {
		return err
	}
	if err := w.catalog.SetStatus(ctx, rec.ID, catalog.StatusProcessing); err != nil {
		return fmt.Errorf("mark record processing: %w", err)
	}

	enrichMetadata(rec)
	rec.Status = catalog.StatusCompleted
	if err := w.catalog.Update(ctx, rec); err != nil {
		return w.fail(ctx, rec, fmt.Errorf("store record: %w", err))
	}
	w.logger.Info("relinked moved object",
		logging.String(logging.FieldObjectKey, rec.ObjectKey),
		logging.String("moved_from", rec.MovedFrom),
	)
	return nil
}

func (w *workers) load(ctx context.Context, payload []byte) (*catalog.Record, error) {
	var p taskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	rec, err := w.catalog.GetByID(ctx, p.RecordID)
	if err != nil {
		return nil, fmt.Errorf("load record %d: %w", p.RecordID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("record %d not found", p.RecordID)
	}
	return rec, nil
}

func (w *workers) hashObject(ctx context.Context, key string) (string, error) {
	rc, err := w.content.Open(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return classify.HashReader(rc)
}

func (w *workers) fail(ctx context.Context, rec *catalog.Record, cause error) error {
	if err := w.catalog.SetStatus(ctx, rec.ID, catalog.StatusFailed); err != nil {
		w.logger.Error("failed to mark record failed",
			logging.String(logging.FieldObjectKey, rec.ObjectKey),
			logging.Error(err),
		)
	}
	return cause
}

func enrichMetadata(rec *catalog.Record) {
	if rec.Metadata == nil {
		rec.Metadata = make(map[string]string)
	}
	rec.Metadata["display_title"] = DisplayTitle(rec.ObjectKey)
	rec.Metadata["media_type"] = contentstore.DetectMediaType(rec.ObjectKey)
}

var titleCaser = cases.Title(language.Und)

// DisplayTitle derives a human-readable title from an object key:
// "photos/summer-trip_2024.jpg" becomes "Summer Trip 2024".
func DisplayTitle(key string) string {
	name := path.Base(key)
	if ext := path.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	name = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return path.Base(key)
	}
	return titleCaser.String(name)
}
