package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const runColumns = `id, stage, total_items, processed_items, progress_percent, error_message, started_at, updated_at`

// NewRun creates a durable run row in the fetching stage.
func (s *Store) NewRun(ctx context.Context, runID string) (*Run, error) {
	now := time.Now().UTC()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO ingestion_runs (id, stage, total_items, processed_items, progress_percent, started_at, updated_at)
		 VALUES (?, ?, 0, 0, 0, ?, ?)`,
		runID, string(StageFetching), formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetRun(ctx, runID)
}

// GetRun returns the run with the given id, or nil when absent.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM ingestion_runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns up to limit runs, most recent first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM ingestion_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SetRunStage transitions a run to a new (non-terminal) stage.
func (s *Store) SetRunStage(ctx context.Context, runID string, stage RunStage) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE ingestion_runs SET stage = ?, updated_at = ? WHERE id = ?`,
		string(stage), formatTime(time.Now()), runID)
	if err != nil {
		return fmt.Errorf("set run stage: %w", err)
	}
	return nil
}

// UpdateRunProgress persists progress counters. processed_items never
// decreases: concurrent or replayed updates keep the highest value seen.
func (s *Store) UpdateRunProgress(ctx context.Context, runID string, totalItems, processedItems int) error {
	percent := 0.0
	if totalItems > 0 {
		percent = float64(processedItems) / float64(totalItems) * 100
		if percent > 100 {
			percent = 100
		}
	}
	_, err := s.execWithRetry(ctx,
		`UPDATE ingestion_runs SET
			total_items = ?,
			processed_items = MAX(processed_items, ?),
			progress_percent = MAX(progress_percent, ?),
			updated_at = ?
		 WHERE id = ?`,
		totalItems, processedItems, percent, formatTime(time.Now()), runID)
	if err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	return nil
}

// CompleteRun marks the run terminal with stage completed and full progress.
func (s *Store) CompleteRun(ctx context.Context, runID string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE ingestion_runs SET stage = ?, processed_items = total_items,
			progress_percent = 100, updated_at = ? WHERE id = ?`,
		string(StageCompleted), formatTime(time.Now()), runID)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// FailRun marks the run terminal with stage failed and the error message.
func (s *Store) FailRun(ctx context.Context, runID string, message string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE ingestion_runs SET stage = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(StageFailed), nullableString(message), formatTime(time.Now()), runID)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return nil
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run          Run
		stage        string
		errorMessage sql.NullString
		startedAt    string
		updatedAt    string
	)
	if err := row.Scan(&run.ID, &stage, &run.TotalItems, &run.ProcessedItems,
		&run.ProgressPercent, &errorMessage, &startedAt, &updatedAt); err != nil {
		return nil, err
	}
	run.Stage = RunStage(stage)
	run.ErrorMessage = errorMessage.String

	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if run.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &run, nil
}
