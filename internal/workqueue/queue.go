package workqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"corral/internal/config"
)

// Status is the lifecycle of one queued work item.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	// StatusUnknown is reported for handles the queue has no bookkeeping for,
	// e.g. items expired from a pruned queue.
	StatusUnknown Status = "unknown"
)

// Job is one claimed work item.
type Job struct {
	Handle  string
	Task    string
	Payload []byte
}

// Queue is a SQLite-backed work queue. Items are claimed by workers in
// submission order and marked finished exactly once; consumers get
// at-least-once delivery and must persist idempotently.
type Queue struct {
	db *sql.DB
}

// Open connects the queue to the catalog database file.
func Open(cfg *config.Config) (*Queue, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath connects to an explicit database file, creating the work table if
// needed.
func OpenPath(dbPath string) (*Queue, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open work queue db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS work_items (
		handle TEXT PRIMARY KEY,
		task TEXT NOT NULL,
		payload BLOB NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create work_items table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_work_items_status
		ON work_items(status, created_at)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create work_items index: %w", err)
	}
	return &Queue{db: db}, nil
}

// Close releases the database connection.
func (q *Queue) Close() error {
	if q == nil || q.db == nil {
		return nil
	}
	return q.db.Close()
}

// Enqueue submits a work item and returns its handle.
func (q *Queue) Enqueue(ctx context.Context, taskName string, payload []byte) (string, error) {
	taskName = strings.TrimSpace(taskName)
	if taskName == "" {
		return "", errors.New("enqueue: task name is required")
	}
	if payload == nil {
		payload = []byte{}
	}

	handle := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO work_items (handle, task, payload, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		handle, taskName, payload, string(StatusPending), now, now)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", taskName, err)
	}
	return handle, nil
}

// Status reports the state of a handle. Handles the queue does not know
// return StatusUnknown, not an error.
func (q *Queue) Status(ctx context.Context, handle string) (Status, error) {
	var status string
	err := q.db.QueryRowContext(ctx,
		`SELECT status FROM work_items WHERE handle = ?`, handle).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return StatusUnknown, nil
	}
	if err != nil {
		return StatusUnknown, fmt.Errorf("status of %s: %w", handle, err)
	}
	return Status(status), nil
}

// Counts returns aggregate item counts for health reporting.
func (q *Queue) Counts(ctx context.Context) (pending, running, finished int, err error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT status, COUNT(1) FROM work_items GROUP BY status`)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("count work items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return 0, 0, 0, err
		}
		switch Status(status) {
		case StatusPending:
			pending = count
		case StatusRunning:
			running = count
		case StatusFinished:
			finished = count
		}
	}
	return pending, running, finished, rows.Err()
}

// claimNext atomically transitions the oldest pending item to running and
// returns it. A nil job means the queue is drained.
func (q *Queue) claimNext(ctx context.Context) (*Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	row := q.db.QueryRowContext(ctx,
		`UPDATE work_items SET status = ?, updated_at = ?
		 WHERE handle = (
			SELECT handle FROM work_items WHERE status = ? ORDER BY created_at, handle LIMIT 1
		 )
		 RETURNING handle, task, payload`,
		string(StatusRunning), now, string(StatusPending))

	var job Job
	err := row.Scan(&job.Handle, &job.Task, &job.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next work item: %w", err)
	}
	return &job, nil
}

// finish marks a claimed item done, recording the handler error if any.
func (q *Queue) finish(ctx context.Context, handle string, handlerErr error) error {
	var errText any
	if handlerErr != nil {
		errText = handlerErr.Error()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := q.db.ExecContext(ctx,
		`UPDATE work_items SET status = ?, error = ?, updated_at = ? WHERE handle = ?`,
		string(StatusFinished), errText, now, handle)
	if err != nil {
		return fmt.Errorf("finish work item %s: %w", handle, err)
	}
	return nil
}
