// Package store is the adapter every engine reads and writes through. Values
// are whole JSON documents; each successful put bumps a version token that
// writers can pass back to detect lost updates.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"quiz-arena/internal/domain"
)

// Version is the store-assigned revision of a key. It starts at 1 and keeps
// counting across a delete, so a recreated key never repeats an old version.
type Version int64

const (
	// Absent as the expected version means the key must not exist yet.
	Absent Version = 0
	// AnyVersion skips the version check (plain last-write-wins).
	AnyVersion Version = -1
)

// Record is a stored value together with its version.
type Record struct {
	Key     string
	Value   []byte
	Version Version
}

// Store is the get/put/delete contract shared by all backends.
type Store interface {
	// Get returns found=false when the key is absent.
	Get(ctx context.Context, key string) (rec Record, found bool, err error)
	// Put overwrites the whole value when the current version equals expected
	// and returns the new version. A mismatch returns domain.ErrConflict.
	Put(ctx context.Context, key string, value []byte, expected Version) (Version, error)
	// Delete removes the key and remembers its last version. Deleting an
	// absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// ConflictError builds the error returned on a version mismatch.
func ConflictError(key string, expected, actual Version) error {
	return fmt.Errorf("%w: key %q expected version %d, found %d", domain.ErrConflict, key, expected, actual)
}

// Matches reports whether a put with expected may replace a value at current.
func Matches(expected, current Version) bool {
	return expected == AnyVersion || expected == current
}

// GetJSON decodes the value at key into a T.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, Version, bool, error) {
	var out T
	rec, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return out, Absent, found, err
	}
	if err := json.Unmarshal(rec.Value, &out); err != nil {
		return out, rec.Version, true, domain.StoreError("decode", key, err)
	}
	return out, rec.Version, true, nil
}

// PutJSON encodes v and writes it at key.
func PutJSON[T any](ctx context.Context, s Store, key string, v T, expected Version) (Version, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Absent, domain.StoreError("encode", key, err)
	}
	return s.Put(ctx, key, data, expected)
}
