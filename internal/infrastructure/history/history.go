// Package history persists fetched title snapshots in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tesso57/trendfeed/internal/domain/trend"

	_ "modernc.org/sqlite"
)

var initStatements = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	`CREATE TABLE IF NOT EXISTS snapshots (
		id         TEXT PRIMARY KEY,
		source     TEXT NOT NULL,
		url        TEXT NOT NULL,
		titles     TEXT NOT NULL,
		fetched_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_source_fetched ON snapshots (source, fetched_at DESC)`,
}

// Manager stores snapshots and keeps at most keep rows per source.
type Manager struct {
	db   *sql.DB
	keep int
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string, keep int) (*Manager, error) {
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	for _, stmt := range initStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init history db: %w", err)
		}
	}
	return &Manager{db: db, keep: keep}, nil
}

// Close releases the database handle.
func (m *Manager) Close() error {
	return m.db.Close()
}

// Save inserts a snapshot and prunes older rows for the same source.
func (m *Manager) Save(ctx context.Context, s trend.Snapshot) error {
	titles := s.Titles
	if titles == nil {
		titles = []string{}
	}
	encoded, err := json.Marshal(titles)
	if err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, source, url, titles, fetched_at) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Source, s.URL, string(encoded), s.FetchedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	if m.keep > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM snapshots WHERE source = ? AND id NOT IN (
				SELECT id FROM snapshots WHERE source = ? ORDER BY fetched_at DESC, rowid DESC LIMIT ?
			)`,
			s.Source, s.Source, m.keep,
		); err != nil {
			return fmt.Errorf("prune snapshots: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit snapshots for source, newest first.
func (m *Manager) Recent(ctx context.Context, source string, limit int) ([]trend.Snapshot, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, source, url, titles, fetched_at FROM snapshots
		WHERE source = ? ORDER BY fetched_at DESC, rowid DESC LIMIT ?`,
		source, limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	snapshots := []trend.Snapshot{}
	for rows.Next() {
		var (
			s       trend.Snapshot
			encoded string
			nanos   int64
		)
		if err := rows.Scan(&s.ID, &s.Source, &s.URL, &encoded, &nanos); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(encoded), &s.Titles); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", s.ID, err)
		}
		s.FetchedAt = time.Unix(0, nanos).UTC()
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// Count returns the number of stored snapshots for source.
func (m *Manager) Count(ctx context.Context, source string) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE source = ?`, source).Scan(&n)
	return n, err
}
