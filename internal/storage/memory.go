package storage

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStorage is an in-memory implementation of Storage. It uses a map and
// RWMutex for thread-safe concurrent access, suitable for development,
// testing, or single-instance deployments.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]json.RawMessage
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]json.RawMessage)}
}

// GetItem returns the stored raw value and whether the key exists.
func (m *MemoryStorage) GetItem(ctx context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return raw, true, nil
}

// SetItem stores a value under key.
func (m *MemoryStorage) SetItem(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	return nil
}

// RemoveItem deletes a key. Idempotent.
func (m *MemoryStorage) RemoveItem(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Clear removes all keys.
func (m *MemoryStorage) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]json.RawMessage)
	return nil
}

// Keys lists all stored keys.
func (m *MemoryStorage) Keys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	return keys, nil
}

// Close is a no-op for MemoryStorage.
func (m *MemoryStorage) Close() error {
	return nil
}
