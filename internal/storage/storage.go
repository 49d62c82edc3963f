// Package storage provides the key/value persistence collaborators.
// Implementations must distinguish "no stored value" from a stored falsy
// value: false, 0 and "" round-trip exactly, never collapsing to absent.
package storage

import (
	"context"
	"encoding/json"
)

// Storage is the key/value interface consumed by the state container.
// GetItem's boolean reports presence; a stored null is still present.
type Storage interface {
	// GetItem returns the raw stored value and whether the key exists.
	GetItem(ctx context.Context, key string) (json.RawMessage, bool, error)

	// SetItem stores a value under key, replacing any previous value.
	SetItem(ctx context.Context, key string, value any) error

	// RemoveItem deletes a key. Removing an absent key is a no-op.
	RemoveItem(ctx context.Context, key string) error

	// Clear removes every key owned by this store.
	Clear(ctx context.Context) error

	// Keys lists all stored keys.
	Keys(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// Get reads and decodes a typed value. The boolean is false when the key is
// absent; a stored falsy value decodes into its literal zero.
func Get[T any](ctx context.Context, s Storage, key string) (T, bool, error) {
	var zero T
	raw, ok, err := s.GetItem(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, false, err
	}
	return out, true, nil
}
