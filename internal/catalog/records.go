package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const recordColumns = `id, object_key, content_hash, provider_file_id, size_bytes, modified_at,
	previous_keys_json, moved_from, move_detected_at, is_copy, ingestion_status,
	metadata_json, created_at, updated_at`

// FindByKey returns the record stored at the given object key, or nil when absent.
func (s *Store) FindByKey(ctx context.Context, objectKey string) (*Record, error) {
	return s.queryOne(ctx,
		`SELECT `+recordColumns+` FROM catalog_records WHERE object_key = ?`, objectKey)
}

// GetByID returns the record with the given id.
func (s *Store) GetByID(ctx context.Context, id int64) (*Record, error) {
	rec, err := s.queryOne(ctx,
		`SELECT `+recordColumns+` FROM catalog_records WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("catalog record %d not found", id)
	}
	return rec, nil
}

// FindByProviderFileID returns the record carrying the given provider-assigned
// file identifier, or nil when absent.
func (s *Store) FindByProviderFileID(ctx context.Context, providerFileID string) (*Record, error) {
	if strings.TrimSpace(providerFileID) == "" {
		return nil, nil
	}
	return s.queryOne(ctx,
		`SELECT `+recordColumns+` FROM catalog_records WHERE provider_file_id = ?`, providerFileID)
}

// FindByFingerprint returns every record sharing the size/mtime fingerprint.
// A nil modified time matches on size alone.
func (s *Store) FindByFingerprint(ctx context.Context, sizeBytes int64, modifiedAt *time.Time) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM catalog_records WHERE size_bytes = ?`
	args := []any{sizeBytes}
	if modifiedAt != nil {
		query += ` AND modified_at = ?`
		args = append(args, formatTime(*modifiedAt))
	}
	query += ` ORDER BY id`

	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fingerprint: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// InsertSparse inserts a minimally populated record for the object key. The
// insert is idempotent: when a record already exists at the key it is returned
// unchanged and created reports false.
func (s *Store) InsertSparse(ctx context.Context, rec *Record) (*Record, bool, error) {
	if rec == nil || strings.TrimSpace(rec.ObjectKey) == "" {
		return nil, false, errors.New("insert sparse: object key is required")
	}

	now := time.Now().UTC()
	previousJSON, metadataJSON, err := marshalRecordJSON(rec)
	if err != nil {
		return nil, false, err
	}

	res, err := s.execWithRetry(ctx,
		`INSERT INTO catalog_records (
			object_key, content_hash, provider_file_id, size_bytes, modified_at,
			previous_keys_json, moved_from, move_detected_at, is_copy,
			ingestion_status, metadata_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(object_key) DO NOTHING`,
		rec.ObjectKey,
		nullableString(rec.ContentHash),
		nullableString(rec.ProviderFileID),
		rec.SizeBytes,
		formatTimePtr(rec.ModifiedAt),
		previousJSON,
		nullableString(rec.MovedFrom),
		formatTimePtr(rec.MoveDetectedAt),
		boolToInt(rec.IsCopy),
		string(statusOrPending(rec.Status)),
		metadataJSON,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert sparse record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	stored, err := s.FindByKey(ctx, rec.ObjectKey)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("insert sparse record: %s vanished after insert", rec.ObjectKey)
	}
	return stored, affected > 0, nil
}

// Update persists every mutable field of the record.
func (s *Store) Update(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == 0 {
		return errors.New("update: record with id is required")
	}

	previousJSON, metadataJSON, err := marshalRecordJSON(rec)
	if err != nil {
		return err
	}

	res, err := s.execWithRetry(ctx,
		`UPDATE catalog_records SET
			object_key = ?, content_hash = ?, provider_file_id = ?, size_bytes = ?,
			modified_at = ?, previous_keys_json = ?, moved_from = ?, move_detected_at = ?,
			is_copy = ?, ingestion_status = ?, metadata_json = ?, updated_at = ?
		WHERE id = ?`,
		rec.ObjectKey,
		nullableString(rec.ContentHash),
		nullableString(rec.ProviderFileID),
		rec.SizeBytes,
		formatTimePtr(rec.ModifiedAt),
		previousJSON,
		nullableString(rec.MovedFrom),
		formatTimePtr(rec.MoveDetectedAt),
		boolToInt(rec.IsCopy),
		string(statusOrPending(rec.Status)),
		metadataJSON,
		formatTime(time.Now()),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update record %d: %w", rec.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update record %d: not found", rec.ID)
	}
	return nil
}

// RecordMove relocates an existing record to a new object key, appending the
// old key to the record's key history.
func (s *Store) RecordMove(ctx context.Context, id int64, newKey string) (*Record, error) {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	oldKey := rec.ObjectKey
	now := time.Now().UTC()
	rec.PreviousKeys = append(rec.PreviousKeys, oldKey)
	rec.ObjectKey = newKey
	rec.MovedFrom = oldKey
	rec.MoveDetectedAt = &now

	if err := s.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("record move %s -> %s: %w", oldKey, newKey, err)
	}
	return rec, nil
}

// SetContentHash persists a lazily computed content hash.
func (s *Store) SetContentHash(ctx context.Context, id int64, hash string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE catalog_records SET content_hash = ?, updated_at = ? WHERE id = ?`,
		hash, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set content hash for record %d: %w", id, err)
	}
	return nil
}

// SetStatus updates a record's ingestion status.
func (s *Store) SetStatus(ctx context.Context, id int64, status IngestionStatus) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE catalog_records SET ingestion_status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set status for record %d: %w", id, err)
	}
	return nil
}

// List returns up to limit records ordered by most recently updated.
func (s *Store) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM catalog_records ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) queryOne(ctx context.Context, query string, args ...any) (*Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, query, args...)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec            Record
		contentHash    sql.NullString
		providerFileID sql.NullString
		modifiedAt     sql.NullString
		previousJSON   string
		movedFrom      sql.NullString
		moveDetectedAt sql.NullString
		isCopy         int
		status         string
		metadataJSON   string
		createdAt      string
		updatedAt      string
	)
	if err := row.Scan(
		&rec.ID, &rec.ObjectKey, &contentHash, &providerFileID, &rec.SizeBytes, &modifiedAt,
		&previousJSON, &movedFrom, &moveDetectedAt, &isCopy, &status,
		&metadataJSON, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	rec.ContentHash = contentHash.String
	rec.ProviderFileID = providerFileID.String
	rec.MovedFrom = movedFrom.String
	rec.IsCopy = isCopy != 0
	rec.Status = IngestionStatus(status)

	if modifiedAt.Valid {
		t, err := parseTime(modifiedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse modified_at: %w", err)
		}
		rec.ModifiedAt = &t
	}
	if moveDetectedAt.Valid {
		t, err := parseTime(moveDetectedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse move_detected_at: %w", err)
		}
		rec.MoveDetectedAt = &t
	}

	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	if err := json.Unmarshal([]byte(previousJSON), &rec.PreviousKeys); err != nil {
		return nil, fmt.Errorf("parse previous keys: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &rec, nil
}

func marshalRecordJSON(rec *Record) (previous string, metadata string, err error) {
	keys := rec.PreviousKeys
	if keys == nil {
		keys = []string{}
	}
	previousBytes, err := json.Marshal(keys)
	if err != nil {
		return "", "", fmt.Errorf("marshal previous keys: %w", err)
	}

	meta := rec.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metadataBytes, err := json.Marshal(meta)
	if err != nil {
		return "", "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(previousBytes), string(metadataBytes), nil
}

func statusOrPending(status IngestionStatus) IngestionStatus {
	if status == "" {
		return StatusPending
	}
	return status
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
