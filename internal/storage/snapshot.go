// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SnapshotStore keeps cache snapshots in SQLite. It is safe for concurrent
// use; database/sql serializes access to the single connection.
type SnapshotStore struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the snapshot database at path. Use
// ":memory:" for a throwaway store.
func Open(path string) (*SnapshotStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and avoids
	// SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=2000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshot schema: %w", err)
	}

	return &SnapshotStore{db: db, path: path}, nil
}

// Path returns the database path.
func (s *SnapshotStore) Path() string {
	return s.path
}

// Load returns the snapshot for key. ok is false when none exists.
func (s *SnapshotStore) Load(ctx context.Context, key string) (data []byte, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load snapshot %s: %w", key, err)
	}
	return data, true, nil
}

// Save stores data under key, replacing any previous snapshot.
func (s *SnapshotStore) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", key, err)
	}
	return nil
}

// Delete removes the snapshot for key. Deleting a missing key is not an
// error.
func (s *SnapshotStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", key, err)
	}
	return nil
}

// Clear removes every snapshot, used on logout.
func (s *SnapshotStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM snapshots"); err != nil {
		return fmt.Errorf("failed to clear snapshots: %w", err)
	}
	return nil
}

// Keys lists the stored snapshot keys in order.
func (s *SnapshotStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM snapshots ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the database.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
