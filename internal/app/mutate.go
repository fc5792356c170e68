package app

import (
	"context"
	"errors"

	"quiz-arena/internal/domain"
	"quiz-arena/internal/store"
)

// DefaultMaxRetries bounds how often a conflicting write is re-read and retried.
const DefaultMaxRetries = 3

// errUnchanged lets a mutation skip the write without failing.
var errUnchanged = errors.New("unchanged")

// mutate performs a read-modify-write of the whole record at key. The write is
// guarded by the version that was read; on conflict the record is re-read and
// fn applied again, up to retries extra times. fn errors abort without writing.
func mutate[T any](ctx context.Context, s store.Store, key string, retries int, fn func(cur T, found bool) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		cur, version, found, err := store.GetJSON[T](ctx, s, key)
		if err != nil {
			return zero, err
		}
		next, err := fn(cur, found)
		if errors.Is(err, errUnchanged) {
			return cur, nil
		}
		if err != nil {
			return zero, err
		}
		expected := version
		if !found {
			expected = store.Absent
		}
		_, err = store.PutJSON(ctx, s, key, next, expected)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= retries {
			return zero, err
		}
	}
}
