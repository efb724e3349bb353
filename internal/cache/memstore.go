package cache

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-memory Store for tests and dry runs. It keeps the
// artifact bytes so assertions can inspect what was rendered.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	content map[string][]byte
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		entries: make(map[string]Entry),
		content: make(map[string][]byte),
	}
}

func (m *MemStore) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *MemStore) Put(_ context.Context, key string, content []byte, mediaType string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		return e, nil
	}
	e := Entry{
		Key:       key,
		Name:      key + "." + extensionFor(mediaType),
		MediaType: mediaType,
		CreatedAt: time.Now().UTC(),
	}
	m.entries[key] = e
	m.content[key] = append([]byte(nil), content...)
	return e, nil
}

// Content returns the stored bytes for key, for test assertions.
func (m *MemStore) Content(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.content[key]
	return b, ok
}

// Len returns the number of stored entries.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemStore) Close() error { return nil }
