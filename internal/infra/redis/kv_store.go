package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-arena/internal/domain"
	"quiz-arena/internal/store"
)

const (
	fieldValue   = "value"
	fieldVersion = "version"
)

// KVStore keeps every record in a Redis hash:
//
//	HSET {key} value {json} version {n}
//
// Puts run under WATCH so a concurrent writer turns into a conflict instead of
// a lost update. Delete drops only the value field; the version field stays
// behind as a tombstone until the key expires.
type KVStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewKVStore returns a store whose records expire ttl after their last write.
// A zero ttl keeps records forever.
func NewKVStore(client *redis.Client, ttl time.Duration) *KVStore {
	return &KVStore{client: client, ttl: ttl}
}

func (s *KVStore) Get(ctx context.Context, key string) (store.Record, bool, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return store.Record{}, false, domain.StoreError("get", key, err)
	}
	value, ok := fields[fieldValue]
	if !ok {
		return store.Record{}, false, nil
	}
	version, err := strconv.ParseInt(fields[fieldVersion], 10, 64)
	if err != nil {
		return store.Record{}, false, domain.StoreError("get", key, err)
	}
	return store.Record{
		Key:     key,
		Value:   []byte(value),
		Version: store.Version(version),
	}, true, nil
}

func (s *KVStore) Put(ctx context.Context, key string, value []byte, expected store.Version) (store.Version, error) {
	var next store.Version
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		last, live, err := currentVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		current := store.Absent
		if live {
			current = last
		}
		if !store.Matches(expected, current) {
			return store.ConflictError(key, expected, current)
		}
		next = last + 1
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldValue, value, fieldVersion, int64(next))
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, domain.ErrConflict):
		return store.Absent, err
	case errors.Is(err, redis.TxFailedErr):
		return store.Absent, store.ConflictError(key, expected, store.AnyVersion)
	default:
		return store.Absent, domain.StoreError("put", key, err)
	}
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, key, fieldValue).Err(); err != nil {
		return domain.StoreError("delete", key, err)
	}
	return nil
}

// currentVersion returns the last version written to key and whether a value
// is live. A tombstone reports its version with live false.
func currentVersion(ctx context.Context, tx *redis.Tx, key string) (store.Version, bool, error) {
	vals, err := tx.HMGet(ctx, key, fieldValue, fieldVersion).Result()
	if err != nil {
		return store.Absent, false, err
	}
	if vals[1] == nil {
		return store.Absent, false, nil
	}
	raw, ok := vals[1].(string)
	if !ok {
		return store.Absent, false, fmt.Errorf("unexpected version %v", vals[1])
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return store.Absent, false, err
	}
	return store.Version(v), vals[0] != nil, nil
}
