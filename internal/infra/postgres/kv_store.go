package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-arena/internal/domain"
	"quiz-arena/internal/store"
)

// KVStore keeps records as JSONB rows with a version column. A deleted key
// leaves its last version in kv_tombstones and a recreated key continues
// from there.
type KVStore struct {
	pool *pgxpool.Pool
}

func NewKVStore(pool *pgxpool.Pool) *KVStore {
	return &KVStore{pool: pool}
}

func (s *KVStore) Get(ctx context.Context, key string) (store.Record, bool, error) {
	var (
		raw     string
		version int64
	)
	err := s.pool.QueryRow(ctx, `SELECT data::text, version FROM kv_records WHERE key=$1`, key).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Record{}, false, nil
	}
	if err != nil {
		return store.Record{}, false, domain.StoreError("get", key, err)
	}
	return store.Record{Key: key, Value: []byte(raw), Version: store.Version(version)}, true, nil
}

func (s *KVStore) Put(ctx context.Context, key string, value []byte, expected store.Version) (store.Version, error) {
	var (
		row pgx.Row
		sql string
	)
	switch expected {
	case store.AnyVersion:
		sql = `INSERT INTO kv_records (key, data, version, updated_at)
			VALUES ($1, $2::jsonb, COALESCE((SELECT version FROM kv_tombstones WHERE key=$1), 0)+1, now())
			ON CONFLICT (key) DO UPDATE SET data=EXCLUDED.data, version=kv_records.version+1, updated_at=now()
			RETURNING version`
		row = s.pool.QueryRow(ctx, sql, key, string(value))
	case store.Absent:
		sql = `INSERT INTO kv_records (key, data, version, updated_at)
			VALUES ($1, $2::jsonb, COALESCE((SELECT version FROM kv_tombstones WHERE key=$1), 0)+1, now())
			ON CONFLICT (key) DO NOTHING
			RETURNING version`
		row = s.pool.QueryRow(ctx, sql, key, string(value))
	default:
		sql = `UPDATE kv_records SET data=$2::jsonb, version=version+1, updated_at=now()
			WHERE key=$1 AND version=$3
			RETURNING version`
		row = s.pool.QueryRow(ctx, sql, key, string(value), int64(expected))
	}

	var next int64
	err := row.Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		current, _, getErr := s.Get(ctx, key)
		if getErr != nil {
			return store.Absent, getErr
		}
		return store.Absent, store.ConflictError(key, expected, current.Version)
	}
	if err != nil {
		return store.Absent, domain.StoreError("put", key, err)
	}
	return store.Version(next), nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	const sql = `WITH gone AS (DELETE FROM kv_records WHERE key=$1 RETURNING key, version)
		INSERT INTO kv_tombstones (key, version) SELECT key, version FROM gone
		ON CONFLICT (key) DO UPDATE SET version=EXCLUDED.version`
	if _, err := s.pool.Exec(ctx, sql, key); err != nil {
		return domain.StoreError("delete", key, err)
	}
	return nil
}
