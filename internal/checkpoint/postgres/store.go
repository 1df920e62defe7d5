// Package postgres provides a Postgres-backed checkpoint store for
// deployments that already run a shared database.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/social-harvester/internal/checkpoint"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
    stream_key     TEXT NOT NULL,
    last_timestamp BIGINT NOT NULL,
    last_succeeded BOOLEAN NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_checkpoints_stream_key
    ON checkpoints (stream_key);
`

// poolIface is the subset of pgxpool.Pool the store needs; tests substitute
// a pgxmock pool.
type poolIface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store keeps checkpoints in Postgres.
type Store struct {
	pool poolIface
}

// New connects to Postgres and ensures the checkpoint schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("checkpoint.dsn is required for the postgres provider")
	}
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if _, err := p.Exec(ctx, schema); err != nil {
		p.Close()
		return nil, fmt.Errorf("init checkpoint schema: %w", err)
	}
	return &Store{pool: p}, nil
}

// NewWithPool wires an existing pool (used by tests).
func NewWithPool(p poolIface) *Store {
	return &Store{pool: p}
}

// Read returns the stored row for key, or the NeverRun sentinel when absent.
func (s *Store) Read(ctx context.Context, key string) (checkpoint.Checkpoint, error) {
	cp := checkpoint.Checkpoint{Key: key, LastTimestamp: checkpoint.NeverRun}
	err := s.pool.QueryRow(ctx,
		"SELECT last_timestamp, last_succeeded FROM checkpoints WHERE stream_key = $1",
		key,
	).Scan(&cp.LastTimestamp, &cp.LastSucceeded)
	if errors.Is(err, pgx.ErrNoRows) {
		return checkpoint.Checkpoint{Key: key, LastTimestamp: checkpoint.NeverRun}, nil
	}
	if err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("read checkpoint %q: %w", key, err)
	}
	return cp, nil
}

// Write replaces the row for cp.Key with delete-then-insert inside one
// transaction.
func (s *Store) Write(ctx context.Context, cp checkpoint.Checkpoint) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin checkpoint write: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		"DELETE FROM checkpoints WHERE stream_key = $1", cp.Key,
	); err != nil {
		return fmt.Errorf("delete checkpoint %q: %w", cp.Key, err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO checkpoints (stream_key, last_timestamp, last_succeeded) VALUES ($1, $2, $3)",
		cp.Key, cp.LastTimestamp, cp.LastSucceeded,
	); err != nil {
		return fmt.Errorf("insert checkpoint %q: %w", cp.Key, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit checkpoint %q: %w", cp.Key, err)
	}
	return nil
}

// List returns all stored checkpoints ordered by key.
func (s *Store) List(ctx context.Context) ([]checkpoint.Checkpoint, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT stream_key, last_timestamp, last_succeeded FROM checkpoints ORDER BY stream_key",
	)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var cps []checkpoint.Checkpoint
	for rows.Next() {
		var cp checkpoint.Checkpoint
		if err := rows.Scan(&cp.Key, &cp.LastTimestamp, &cp.LastSucceeded); err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		cps = append(cps, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoint rows: %w", err)
	}
	return cps, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
