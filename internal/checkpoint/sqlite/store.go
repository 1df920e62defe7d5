// Package sqlite provides the file-backed checkpoint store used by default.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/JakeFAU/social-harvester/internal/checkpoint"
)

//go:embed schema.sql
var schema string

// Store keeps checkpoints in a single-writer SQLite file.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the checkpoint database at path and ensures the
// schema exists.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		closeErr := db.Close()
		return nil, fmt.Errorf("init checkpoint schema: %w", errors.Join(err, closeErr))
	}
	return &Store{db: db}, nil
}

// Read returns the stored row for key, or the NeverRun sentinel when absent.
func (s *Store) Read(ctx context.Context, key string) (checkpoint.Checkpoint, error) {
	cp := checkpoint.Checkpoint{Key: key, LastTimestamp: checkpoint.NeverRun}
	var succeeded int
	err := s.db.QueryRowContext(ctx,
		"SELECT last_timestamp, last_succeeded FROM checkpoints WHERE stream_key = ?",
		key,
	).Scan(&cp.LastTimestamp, &succeeded)
	if errors.Is(err, sql.ErrNoRows) {
		return cp, nil
	}
	if err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("read checkpoint %q: %w", key, err)
	}
	cp.LastSucceeded = succeeded != 0
	return cp, nil
}

// Write replaces the row for cp.Key with delete-then-insert inside one
// transaction, so a concurrent reader sees either the old row or the new one.
func (s *Store) Write(ctx context.Context, cp checkpoint.Checkpoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkpoint write: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM checkpoints WHERE stream_key = ?", cp.Key,
	); err != nil {
		return fmt.Errorf("delete checkpoint %q: %w", cp.Key, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO checkpoints (stream_key, last_timestamp, last_succeeded) VALUES (?, ?, ?)",
		cp.Key, cp.LastTimestamp, boolToInt(cp.LastSucceeded),
	); err != nil {
		return fmt.Errorf("insert checkpoint %q: %w", cp.Key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint %q: %w", cp.Key, err)
	}
	return nil
}

// List returns all stored checkpoints ordered by key.
func (s *Store) List(ctx context.Context) ([]checkpoint.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT stream_key, last_timestamp, last_succeeded FROM checkpoints ORDER BY stream_key",
	)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var cps []checkpoint.Checkpoint
	for rows.Next() {
		var cp checkpoint.Checkpoint
		var succeeded int
		if err := rows.Scan(&cp.Key, &cp.LastTimestamp, &succeeded); err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		cp.LastSucceeded = succeeded != 0
		cps = append(cps, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoint rows: %w", err)
	}
	return cps, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close checkpoint database: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
