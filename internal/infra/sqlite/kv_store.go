package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"quiz-arena/internal/domain"
	"quiz-arena/internal/store"
)

// KVStore persists records in a single SQLite file, the local-profile backend
// used by the CLI.
type KVStore struct {
	db *sql.DB
}

func NewKVStore(path string) (*KVStore, error) {
	if strings.TrimSpace(path) == "" {
		path = "quiz-arena.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &KVStore{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *KVStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS kv_records (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		version INTEGER NOT NULL,
		updated_at_unix INTEGER NOT NULL
	);`); err != nil {
		return err
	}
	// last version of deleted keys so a recreated key keeps counting
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS kv_tombstones (
		key TEXT PRIMARY KEY,
		version INTEGER NOT NULL
	);`)
	return err
}

func (s *KVStore) Close() error {
	return s.db.Close()
}

func (s *KVStore) Get(ctx context.Context, key string) (store.Record, bool, error) {
	var (
		data    []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT data, version FROM kv_records WHERE key = ?`, key).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, false, nil
	}
	if err != nil {
		return store.Record{}, false, domain.StoreError("get", key, err)
	}
	return store.Record{Key: key, Value: data, Version: store.Version(version)}, true, nil
}

func (s *KVStore) Put(ctx context.Context, key string, value []byte, expected store.Version) (store.Version, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Absent, domain.StoreError("put", key, err)
	}
	defer tx.Rollback()

	var current, last int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM kv_records WHERE key = ?`, key).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return store.Absent, domain.StoreError("put", key, err)
	}
	if !store.Matches(expected, store.Version(current)) {
		return store.Absent, store.ConflictError(key, expected, store.Version(current))
	}
	last = current
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.QueryRowContext(ctx, `SELECT version FROM kv_tombstones WHERE key = ?`, key).Scan(&last)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return store.Absent, domain.StoreError("put", key, err)
		}
	}

	next := last + 1
	_, err = tx.ExecContext(ctx,
		`INSERT INTO kv_records (key, data, version, updated_at_unix) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			version = excluded.version,
			updated_at_unix = excluded.updated_at_unix`,
		key, value, next, time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return store.Absent, domain.StoreError("put", key, err)
	}
	if err := tx.Commit(); err != nil {
		return store.Absent, domain.StoreError("put", key, err)
	}
	return store.Version(next), nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StoreError("delete", key, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO kv_tombstones (key, version)
		 SELECT key, version FROM kv_records WHERE key = ?
		 ON CONFLICT(key) DO UPDATE SET version = excluded.version`,
		key,
	); err != nil {
		return domain.StoreError("delete", key, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM kv_records WHERE key = ?`, key); err != nil {
		return domain.StoreError("delete", key, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.StoreError("delete", key, err)
	}
	return nil
}
