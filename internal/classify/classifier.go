package classify

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"corral/internal/catalog"
	"corral/internal/contentstore"
	"corral/internal/logging"
)

// Action is the classifier's verdict for a discovered item.
type Action string

const (
	// ActionCreateNew means the item has no known prior identity (or is
	// already cataloged at this exact key).
	ActionCreateNew Action = "create_new"
	// ActionMove means the item is a known object whose original location no
	// longer holds a file.
	ActionMove Action = "move"
	// ActionCopy means the item duplicates a known object that still exists
	// at its recorded location.
	ActionCopy Action = "copy"
)

// Result is the outcome of classifying one discovered item. It is consumed
// immediately by the orchestrator and never persisted.
type Result struct {
	Action     Action
	Matched    *catalog.Record
	Reason     string
	Confidence float64
}

const (
	confidenceExact      = 1.0
	confidenceProviderID = 0.95
	confidenceHash       = 0.9
)

// Classifier resolves a discovered item's identity against the catalog using
// an ordered disambiguation pipeline: exact key, then provider file id, then
// size/mtime fingerprint narrowed by content hashing. The precedence is
// fixed; the first decisive stage wins.
type Classifier struct {
	catalog *catalog.Store
	content contentstore.Store
	logger  *slog.Logger
	hashBuf int
}

// New constructs a classifier. hashBufferBytes sizes the read buffer used
// while hashing file contents; values <= 0 fall back to 256 KiB.
func New(catalogStore *catalog.Store, content contentstore.Store, logger *slog.Logger, hashBufferBytes int) *Classifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	if hashBufferBytes <= 0 {
		hashBufferBytes = 256 * 1024
	}
	return &Classifier{catalog: catalogStore, content: content, logger: logger, hashBuf: hashBufferBytes}
}

// Classify resolves one item. Failures inside the pipeline never propagate:
// the result degrades to CreateNew with confidence 0 and the error as reason,
// so a single bad item cannot abort the surrounding enumeration.
func (c *Classifier) Classify(ctx context.Context, item contentstore.Item) Result {
	result, err := c.classify(ctx, item)
	if err != nil {
		c.logger.Warn("classification degraded to create-new",
			logging.String(logging.FieldObjectKey, item.Key),
			logging.Error(err),
		)
		return Result{Action: ActionCreateNew, Reason: err.Error(), Confidence: 0}
	}
	return result
}

func (c *Classifier) classify(ctx context.Context, item contentstore.Item) (Result, error) {
	// Exact key: the object is already cataloged at this location.
	existing, err := c.catalog.FindByKey(ctx, item.Key)
	if err != nil {
		return Result{}, fmt.Errorf("lookup by key: %w", err)
	}
	if existing != nil {
		return Result{
			Action:     ActionCreateNew,
			Matched:    existing,
			Reason:     "already cataloged at this key",
			Confidence: confidenceExact,
		}, nil
	}

	// Provider identity: a stable file id that survived a rename.
	if item.ProviderFileID != "" {
		candidate, err := c.catalog.FindByProviderFileID(ctx, item.ProviderFileID)
		if err != nil {
			return Result{}, fmt.Errorf("lookup by provider file id: %w", err)
		}
		if candidate != nil && candidate.ObjectKey != item.Key {
			return c.resolveMoveOrCopy(ctx, candidate, confidenceProviderID,
				fmt.Sprintf("provider file id %s matched %s", item.ProviderFileID, candidate.ObjectKey)), nil
		}
	}

	// Fingerprint shortlist, then content verification.
	candidates, err := c.fingerprintCandidates(ctx, item)
	if err != nil {
		return Result{}, fmt.Errorf("fingerprint search: %w", err)
	}
	if len(candidates) > 0 {
		match, err := c.verifyByContent(ctx, item, candidates)
		if err != nil {
			return Result{}, err
		}
		if match != nil {
			return c.resolveMoveOrCopy(ctx, match, confidenceHash,
				fmt.Sprintf("content hash matched %s", match.ObjectKey)), nil
		}
	}

	return Result{
		Action:     ActionCreateNew,
		Reason:     "no matching files found",
		Confidence: confidenceExact,
	}, nil
}

func (c *Classifier) fingerprintCandidates(ctx context.Context, item contentstore.Item) ([]*catalog.Record, error) {
	if item.SizeBytes <= 0 {
		return nil, nil
	}
	var mtime *time.Time
	if !item.ModifiedAt.IsZero() {
		t := item.ModifiedAt
		mtime = &t
	}
	candidates, err := c.catalog.FindByFingerprint(ctx, item.SizeBytes, mtime)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 && mtime != nil {
		// Copies often carry a fresh mtime. Shortlist on size alone and let
		// content hashing decide.
		return c.catalog.FindByFingerprint(ctx, item.SizeBytes, nil)
	}
	return candidates, nil
}

// verifyByContent hashes the discovered item and compares it against each
// candidate, computing missing candidate hashes lazily. The first exact match
// wins; candidates whose bytes can no longer be read are skipped.
func (c *Classifier) verifyByContent(ctx context.Context, item contentstore.Item, candidates []*catalog.Record) (*catalog.Record, error) {
	itemHash, err := c.hashObject(ctx, item.Key)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", item.Key, err)
	}

	for _, candidate := range candidates {
		hash := candidate.ContentHash
		if hash == "" {
			hash, err = c.hashObject(ctx, candidate.ObjectKey)
			if err != nil {
				c.logger.Debug("candidate hash unavailable",
					logging.String(logging.FieldObjectKey, candidate.ObjectKey),
					logging.Error(err),
				)
				continue
			}
			if err := c.catalog.SetContentHash(ctx, candidate.ID, hash); err != nil {
				return nil, fmt.Errorf("persist candidate hash: %w", err)
			}
			candidate.ContentHash = hash
		}
		if hash == itemHash {
			return candidate, nil
		}
	}
	return nil, nil
}

// resolveMoveOrCopy decides between a move and a copy by re-listing the
// directory the candidate is currently recorded at: if a file with the
// candidate's filename is still present the original persists (copy),
// otherwise it is gone (move). Listing errors default optimistically to move.
func (c *Classifier) resolveMoveOrCopy(ctx context.Context, candidate *catalog.Record, confidence float64, reason string) Result {
	parent := path.Dir(candidate.ObjectKey)
	if parent == "." {
		parent = ""
	}
	filename := candidate.Filename()

	entries, err := c.content.List(ctx, parent)
	if err != nil {
		c.logger.Warn("listing recorded location failed; assuming move",
			logging.String(logging.FieldObjectKey, candidate.ObjectKey),
			logging.Error(err),
		)
		return Result{Action: ActionMove, Matched: candidate, Reason: reason, Confidence: confidence}
	}

	for _, entry := range entries {
		if !entry.IsDir && entry.Name == filename {
			return Result{Action: ActionCopy, Matched: candidate, Reason: reason, Confidence: confidence}
		}
	}
	return Result{Action: ActionMove, Matched: candidate, Reason: reason, Confidence: confidence}
}
