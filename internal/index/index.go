// Package index wraps the search-engine write surface behind a small
// contract: idempotent upsert by id plus a best-effort existence probe.
package index

import "context"

// Indexer stores normalized documents in a search engine.
type Indexer interface {
	// Upsert creates or overwrites the document stored under id.
	Upsert(ctx context.Context, id string, doc any) error
	// Exists reports whether a document with id is already stored. It is
	// best-effort and only used for probabilistic skip checks, never for
	// correctness.
	Exists(ctx context.Context, id string) (bool, error)
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}

// Noop discards every document. Useful for dry runs.
type Noop struct{}

// Upsert discards the document.
func (Noop) Upsert(context.Context, string, any) error { return nil }

// Exists always reports false.
func (Noop) Exists(context.Context, string) (bool, error) { return false, nil }

// Ping always succeeds.
func (Noop) Ping(context.Context) error { return nil }
