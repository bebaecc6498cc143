package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of *pgxpool.Pool used by PostgresStore.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const (
	selectEntrySQL = `SELECT value FROM kv_entries WHERE key = $1`
	upsertEntrySQL = `INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	deleteEntriesSQL = `DELETE FROM kv_entries WHERE key = ANY($1)`
)

// PostgresStore keeps entries in the kv_entries table created by Migrate.
type PostgresStore struct {
	Q Querier
}

func (p PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	if err := p.Q.QueryRow(ctx, selectEntrySQL, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select kv entry: %w", err)
	}
	return value, nil
}

func (p PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := p.Q.Exec(ctx, upsertEntrySQL, key, value); err != nil {
		return fmt.Errorf("upsert kv entry: %w", err)
	}
	return nil
}

func (p PostgresStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := p.Q.Exec(ctx, deleteEntriesSQL, keys); err != nil {
		return fmt.Errorf("delete kv entries: %w", err)
	}
	return nil
}

func (p PostgresStore) Ping(ctx context.Context) error {
	return p.Q.Ping(ctx)
}
