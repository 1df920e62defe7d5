// Package checkpoint declares the durable high-water-mark store used to make
// harvest runs incremental.
package checkpoint

import (
	"context"
	"fmt"
)

// NeverRun is the sentinel timestamp for streams that have no checkpoint yet.
const NeverRun int64 = -1

// Checkpoint records how far a single content stream has been processed.
// LastSucceeded is false when the recording pass stopped on a write failure,
// which tells the next run not to trust LastTimestamp as a cutoff.
type Checkpoint struct {
	Key           string `json:"key"`
	LastTimestamp int64  `json:"last_timestamp"`
	LastSucceeded bool   `json:"last_succeeded"`
}

// Store persists one row per content stream. Implementations must replace a
// row atomically on Write and must never expose a half-written row.
type Store interface {
	// Read returns the stored checkpoint for key, or the NeverRun sentinel
	// (timestamp -1, succeeded false) when no row exists.
	Read(ctx context.Context, key string) (Checkpoint, error)
	// Write replaces any existing row for cp.Key in a single transaction.
	Write(ctx context.Context, cp Checkpoint) error
	// List returns every stored checkpoint, ordered by key.
	List(ctx context.Context) ([]Checkpoint, error)
	Close() error
}

// Stream keys. A watched user owns two independent tracks; a community scan
// has a single track covering its combined post+reply stream.
func UserPostsKey(username string) string {
	return fmt.Sprintf("user:%s:posts", username)
}

// UserRepliesKey returns the stream key for a user's reply track.
func UserRepliesKey(username string) string {
	return fmt.Sprintf("user:%s:replies", username)
}

// CommunityKey returns the stream key for a community scan.
func CommunityKey(name string) string {
	return fmt.Sprintf("community:%s", name)
}
