package storage

import (
	"context"
	"fmt"
)

// NewStorage creates a storage backend by type.
// Supported types: "memory", "file", "postgres".
func NewStorage(ctx context.Context, storeType, location string) (Storage, error) {
	switch storeType {
	case "memory":
		return NewMemoryStorage(), nil
	case "file":
		if location == "" {
			return nil, fmt.Errorf("file storage requires a path")
		}
		return NewFileStorage(location)
	case "postgres":
		if location == "" {
			return nil, fmt.Errorf("postgres storage requires a DSN")
		}
		return NewPostgresStorage(ctx, location)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}
