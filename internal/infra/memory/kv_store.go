package memory

import (
	"context"
	"sync"

	"quiz-arena/internal/store"
)

// KVStore is an in-memory implementation of store.Store.
type KVStore struct {
	mu      sync.RWMutex
	records map[string]store.Record
	// last version of deleted keys
	tombstones map[string]store.Version
}

func NewKVStore() *KVStore {
	return &KVStore{
		records:    make(map[string]store.Record),
		tombstones: make(map[string]store.Version),
	}
}

func (s *KVStore) Get(_ context.Context, key string) (store.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return store.Record{}, false, nil
	}
	rec.Value = append([]byte(nil), rec.Value...)
	return rec, true, nil
}

func (s *KVStore) Put(_ context.Context, key string, value []byte, expected store.Version) (store.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.records[key].Version
	if !store.Matches(expected, current) {
		return current, store.ConflictError(key, expected, current)
	}
	next := max(current, s.tombstones[key]) + 1
	delete(s.tombstones, key)
	s.records[key] = store.Record{
		Key:     key,
		Value:   append([]byte(nil), value...),
		Version: next,
	}
	return next, nil
}

func (s *KVStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[key]; ok {
		s.tombstones[key] = rec.Version
		delete(s.records, key)
	}
	return nil
}
