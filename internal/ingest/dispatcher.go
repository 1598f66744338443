package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"corral/internal/catalog"
	"corral/internal/classify"
	"corral/internal/discovery"
	"corral/internal/logging"
)

// intent pairs a discovered item with its classification, ready for dispatch.
type intent struct {
	item   discovery.Item
	result classify.Result
}

// taskPayload is the JSON body handed to queue workers.
type taskPayload struct {
	RecordID  int64  `json:"record_id"`
	ObjectKey string `json:"object_key"`
	RunID     string `json:"run_id"`
}

// dispatch turns every intent into a catalog write plus a queued job and
// returns the handles to await. An item that needs no work, or whose dispatch
// fails, is counted as processed immediately so the run can still reach 100%.
func (o *Orchestrator) dispatch(ctx context.Context, logger *slog.Logger, tracker *progress, intents []intent) []string {
	handles := make([]string, 0, len(intents))
	for _, in := range intents {
		handle, queued, err := o.dispatchOne(ctx, tracker.runID, in)
		if err != nil {
			logger.Error("failed to dispatch item",
				logging.String(logging.FieldObjectKey, in.item.Key),
				logging.String("action", string(in.result.Action)),
				logging.Error(err),
			)
			tracker.itemsProcessed(ctx, 1)
			continue
		}
		if !queued {
			logger.Debug("item needs no work",
				logging.String(logging.FieldObjectKey, in.item.Key),
			)
			tracker.itemsProcessed(ctx, 1)
			continue
		}

		handles = append(handles, handle)
		// Checkpoint after every successful submission so pollers see the run
		// alive throughout a long enqueue pass.
		tracker.persist(ctx)
		if err := o.notifier.NotifyItemQueued(ctx, in.item.Key); err != nil {
			logger.Debug("item-queued notification failed", logging.Error(err))
		}
	}
	return handles
}

// dispatchOne applies one classification outcome to the catalog and enqueues
// the matching task. queued is false when the item is already fully cataloged.
func (o *Orchestrator) dispatchOne(ctx context.Context, runID string, in intent) (handle string, queued bool, err error) {
	var (
		rec  *catalog.Record
		task string
	)

	switch in.result.Action {
	case classify.ActionCreateNew:
		rec, queued, err = o.upsertNew(ctx, in)
		if err != nil || !queued {
			return "", false, err
		}
		task = in.item.Task

	case classify.ActionCopy:
		rec, err = o.insertCopy(ctx, in)
		if err != nil {
			return "", false, err
		}
		task = in.item.Task

	case classify.ActionMove:
		rec, err = o.applyMove(ctx, in)
		if err != nil {
			return "", false, err
		}
		task = discovery.TaskRelinkMedia

	default:
		return "", false, fmt.Errorf("unhandled classification action %q", in.result.Action)
	}

	payload, err := json.Marshal(taskPayload{RecordID: rec.ID, ObjectKey: rec.ObjectKey, RunID: runID})
	if err != nil {
		return "", false, fmt.Errorf("encode payload: %w", err)
	}
	handle, err = o.queue.Enqueue(ctx, task, payload)
	if err != nil {
		return "", false, fmt.Errorf("enqueue %s: %w", task, err)
	}
	return handle, true, nil
}

// upsertNew creates a sparse record for an unknown item. When the item is
// already cataloged at this key the existing record wins; completed records
// are not re-queued.
func (o *Orchestrator) upsertNew(ctx context.Context, in intent) (*catalog.Record, bool, error) {
	rec, _, err := o.catalog.InsertSparse(ctx, &catalog.Record{
		ObjectKey:      in.item.Key,
		ProviderFileID: in.item.ProviderFileID,
		SizeBytes:      in.item.SizeBytes,
		ModifiedAt:     timePtr(in.item.ModifiedAt),
		Status:         catalog.StatusPending,
	})
	if err != nil {
		return nil, false, fmt.Errorf("insert record: %w", err)
	}
	if rec.Status == catalog.StatusCompleted {
		return rec, false, nil
	}
	return rec, true, nil
}

// insertCopy catalogs a duplicate as its own record, carrying provenance and
// the already-verified content hash so the worker never re-reads the bytes.
func (o *Orchestrator) insertCopy(ctx context.Context, in intent) (*catalog.Record, error) {
	src := in.result.Matched
	rec, _, err := o.catalog.InsertSparse(ctx, &catalog.Record{
		ObjectKey:      in.item.Key,
		ContentHash:    src.ContentHash,
		ProviderFileID: in.item.ProviderFileID,
		SizeBytes:      in.item.SizeBytes,
		ModifiedAt:     timePtr(in.item.ModifiedAt),
		IsCopy:         true,
		Status:         catalog.StatusPending,
		Metadata:       map[string]string{"copied_from": src.ObjectKey},
	})
	if err != nil {
		return nil, fmt.Errorf("insert copy record: %w", err)
	}
	return rec, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// applyMove rewrites the matched record's key, preserving its history, and
// refreshes the provider identity the item now carries.
func (o *Orchestrator) applyMove(ctx context.Context, in intent) (*catalog.Record, error) {
	rec, err := o.catalog.RecordMove(ctx, in.result.Matched.ID, in.item.Key)
	if err != nil {
		return nil, fmt.Errorf("record move: %w", err)
	}
	rec.ProviderFileID = in.item.ProviderFileID
	rec.SizeBytes = in.item.SizeBytes
	rec.ModifiedAt = timePtr(in.item.ModifiedAt)
	if err := o.catalog.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("refresh moved record: %w", err)
	}
	return rec, nil
}
