package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// envelopeVersion is bumped when the on-disk layout changes.
	envelopeVersion = 1
	// keyPrefix namespaces stored keys so unrelated documents in the same
	// file are never misread as ours.
	keyPrefix = "flagdeck:"
)

// envelope is the persisted wrapper around each stored value.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Version   int             `json:"version"`
}

// FileStorage persists key/value pairs as a single JSON document on disk.
// Each value is wrapped in a {data, timestamp, version} envelope under a
// namespaced key. Writes go through a temp file and rename, so a crash
// mid-write never leaves a torn document.
type FileStorage struct {
	mu    sync.Mutex
	path  string
	items map[string]envelope
}

// NewFileStorage opens (or creates) the store at path.
func NewFileStorage(path string) (*FileStorage, error) {
	fs := &FileStorage{path: path, items: make(map[string]envelope)}
	if err := fs.load(); err != nil {
		return nil, fmt.Errorf("failed to load storage file: %w", err)
	}
	return fs, nil
}

func (f *FileStorage) load() error {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, &f.items)
}

// flush writes the whole document atomically. Caller holds the lock.
func (f *FileStorage) flush() error {
	raw, err := json.MarshalIndent(f.items, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".flagdeck-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// GetItem returns the stored raw value and whether the key exists.
func (f *FileStorage) GetItem(ctx context.Context, key string) (json.RawMessage, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	env, ok := f.items[keyPrefix+key]
	if !ok {
		return nil, false, nil
	}
	return env.Data, true, nil
}

// SetItem stores a value under key and flushes to disk.
func (f *FileStorage) SetItem(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[keyPrefix+key] = envelope{
		Data:      raw,
		Timestamp: time.Now().UTC(),
		Version:   envelopeVersion,
	}
	return f.flush()
}

// RemoveItem deletes a key and flushes. Idempotent.
func (f *FileStorage) RemoveItem(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.items[keyPrefix+key]; !ok {
		return nil
	}
	delete(f.items, keyPrefix+key)
	return f.flush()
}

// Clear removes every namespaced key and flushes.
func (f *FileStorage) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for k := range f.items {
		if strings.HasPrefix(k, keyPrefix) {
			delete(f.items, k)
		}
	}
	return f.flush()
}

// Keys lists all stored keys, with the namespace prefix stripped.
func (f *FileStorage) Keys(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		if strings.HasPrefix(k, keyPrefix) {
			keys = append(keys, strings.TrimPrefix(k, keyPrefix))
		}
	}
	return keys, nil
}

// Close is a no-op; every mutation already flushed.
func (f *FileStorage) Close() error {
	return nil
}
