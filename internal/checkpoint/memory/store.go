// Package memory provides an in-memory checkpoint store for development and
// testing. Nothing survives a restart, so every run starts from scratch.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/social-harvester/internal/checkpoint"
)

// Store keeps checkpoints in a map.
type Store struct {
	mu   sync.RWMutex
	rows map[string]checkpoint.Checkpoint
}

// New constructs an empty Store.
func New() *Store {
	return &Store{rows: make(map[string]checkpoint.Checkpoint)}
}

// Read returns the stored checkpoint for key, or the NeverRun sentinel.
func (s *Store) Read(_ context.Context, key string) (checkpoint.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cp, ok := s.rows[key]; ok {
		return cp, nil
	}
	return checkpoint.Checkpoint{Key: key, LastTimestamp: checkpoint.NeverRun}, nil
}

// Write replaces the row for cp.Key.
func (s *Store) Write(_ context.Context, cp checkpoint.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[cp.Key] = cp
	return nil
}

// List returns all stored checkpoints ordered by key.
func (s *Store) List(_ context.Context) ([]checkpoint.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cps := make([]checkpoint.Checkpoint, 0, len(s.rows))
	for _, cp := range s.rows {
		cps = append(cps, cp)
	}
	sort.Slice(cps, func(i, j int) bool { return cps[i].Key < cps[j].Key })
	return cps, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
