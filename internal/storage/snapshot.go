package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned when no snapshot exists for a key.
var ErrNoSnapshot = errors.New("no snapshot for key")

// SnapshotStore persists the last successfully fetched payload per
// endpoint so dashboards can render last-known data while the backend
// is unreachable. It is a fallback, never a source of truth: entries
// are only written after a successful fetch and pruned by age.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(dbPath string) (*SnapshotStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save upserts the payload for a key with the current fetch time.
func (s *SnapshotStore) Save(ctx context.Context, key string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (key, payload, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		key, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	slog.DebugContext(ctx, "Snapshot saved", "snapshot_key", key, "bytes", len(payload))
	return nil
}

// Load returns the stored payload and its fetch time, or ErrNoSnapshot.
func (s *SnapshotStore) Load(ctx context.Context, key string) ([]byte, time.Time, error) {
	var payload []byte
	var fetchedAt time.Time

	row := s.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM snapshots WHERE key = ?`, key)
	if err := row.Scan(&payload, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, ErrNoSnapshot
		}
		return nil, time.Time{}, fmt.Errorf("load snapshot: %w", err)
	}

	return payload, fetchedAt, nil
}

// Prune deletes snapshots older than maxAge and returns how many were removed.
func (s *SnapshotStore) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	if removed > 0 {
		slog.InfoContext(ctx, "Pruned stale snapshots", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}
