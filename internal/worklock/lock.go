package worklock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"corral/internal/config"
)

// ErrBusy is returned when the lock is held by another owner with an
// unexpired lease.
var ErrBusy = errors.New("lock is held")

// ErrNotOwner is returned by Release when the token no longer owns the lock,
// either because the lease expired and was taken over or it was never held.
var ErrNotOwner = errors.New("lock token is not the current owner")

// Token proves ownership of an acquired lock until its lease expires.
type Token struct {
	Key       string
	Value     string
	ExpiresAt time.Time
}

// Manager provides cross-process mutual exclusion through lease rows in the
// shared SQLite database. Multiple daemon processes pointing at the same
// database file contend on the same locks; there is no in-process fast path.
type Manager struct {
	db *sql.DB
}

// Open connects the lock manager to the catalog database file.
func Open(cfg *config.Config) (*Manager, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath connects to an explicit database file, creating the lock table if
// needed.
func OpenPath(dbPath string) (*Manager, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open lock db: %w", err)
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

	// expires_at is stored as unix milliseconds so expiry comparisons are
	// exact integer comparisons.
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS locks (
		key TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create locks table: %w", err)
	}
	return &Manager{db: db}, nil
}

// Close releases the database connection.
func (m *Manager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

// TryAcquire attempts to take the lock in a single non-blocking step. A held,
// unexpired lock returns ErrBusy immediately; an expired lease is taken over
// atomically. Store errors are returned as-is so callers fail closed.
func (m *Manager) TryAcquire(ctx context.Context, key string, lease time.Duration) (*Token, error) {
	if lease <= 0 {
		return nil, fmt.Errorf("lease must be positive, got %s", lease)
	}

	now := time.Now().UTC()
	token := &Token{
		Key:       key,
		Value:     uuid.NewString(),
		ExpiresAt: now.Add(lease),
	}

	res, err := m.db.ExecContext(ctx,
		`INSERT INTO locks (key, token, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at
		 WHERE locks.expires_at <= ?`,
		key, token.Value, token.ExpiresAt.UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if affected == 0 {
		return nil, ErrBusy
	}
	return token, nil
}

// Release frees the lock if the token still owns it. Callers treat ErrNotOwner
// as a warning, never a failure: an expired lease may have been taken over.
func (m *Manager) Release(ctx context.Context, token *Token) error {
	if token == nil {
		return ErrNotOwner
	}
	res, err := m.db.ExecContext(ctx,
		`DELETE FROM locks WHERE key = ? AND token = ?`, token.Key, token.Value)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", token.Key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", token.Key, err)
	}
	if affected == 0 {
		return ErrNotOwner
	}
	return nil
}
