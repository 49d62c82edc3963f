package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage backs the key/value interface with a single JSONB table.
// Suitable for multi-instance deployments where overrides must survive
// restarts and be visible across processes.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS flagdeck_kv (
    key        TEXT PRIMARY KEY,
    value      JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgresStorage connects to the database and ensures the table exists.
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure kv table: %w", err)
	}
	return &PostgresStorage{pool: pool}, nil
}

// GetItem returns the stored raw value and whether the key exists.
func (p *PostgresStorage) GetItem(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var raw json.RawMessage
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM flagdeck_kv WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return raw, true, nil
}

// SetItem upserts a value under key.
func (p *PostgresStorage) SetItem(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO flagdeck_kv (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, raw)
	if err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// RemoveItem deletes a key. Idempotent.
func (p *PostgresStorage) RemoveItem(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM flagdeck_kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	return nil
}

// Clear removes all keys.
func (p *PostgresStorage) Clear(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM flagdeck_kv`); err != nil {
		return fmt.Errorf("failed to clear storage: %w", err)
	}
	return nil
}

// Keys lists all stored keys.
func (p *PostgresStorage) Keys(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT key FROM flagdeck_kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close releases the connection pool.
func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}
