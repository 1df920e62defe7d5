package index

import (
	"context"
	"sync"
)

// Memory is an in-memory Indexer for development and tests.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]any
}

// NewMemory constructs an empty Memory index.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]any)}
}

// Upsert stores doc under id, overwriting any previous version.
func (m *Memory) Upsert(_ context.Context, id string, doc any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = doc
	return nil
}

// Exists reports whether id has been stored.
func (m *Memory) Exists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[id]
	return ok, nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Len returns the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Get returns the stored document and whether it exists.
func (m *Memory) Get(id string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	return doc, ok
}
