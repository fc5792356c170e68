package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"quiz-arena/internal/domain"
	"quiz-arena/internal/store"
)

func newTestKVStore(t *testing.T, path string) *KVStore {
	t.Helper()

	s, err := NewKVStore(path)
	if err != nil {
		t.Fatalf("NewKVStore failed: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestKVStoreVersioning(t *testing.T) {
	ctx := context.Background()
	s := newTestKVStore(t, filepath.Join(t.TempDir(), "test.db"))

	v1, err := s.Put(ctx, "currentQuiz", []byte(`{"title":"a"}`), store.Absent)
	if err != nil || v1 != 1 {
		t.Fatalf("create: v=%d err=%v", v1, err)
	}
	if _, err := s.Put(ctx, "currentQuiz", []byte(`{}`), store.Absent); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	v2, err := s.Put(ctx, "currentQuiz", []byte(`{"title":"b"}`), v1)
	if err != nil || v2 != 2 {
		t.Fatalf("update: v=%d err=%v", v2, err)
	}
	if _, err := s.Put(ctx, "currentQuiz", []byte(`{}`), v1); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected stale conflict, got %v", err)
	}

	rec, found, err := s.Get(ctx, "currentQuiz")
	if err != nil || !found || rec.Version != 2 || string(rec.Value) != `{"title":"b"}` {
		t.Fatalf("unexpected record %+v found=%v err=%v", rec, found, err)
	}

	if err := s.Delete(ctx, "currentQuiz"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := s.Get(ctx, "currentQuiz"); found {
		t.Fatalf("expected key removed")
	}
	if _, err := s.Put(ctx, "currentQuiz", []byte(`{}`), v2); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for pre-delete version, got %v", err)
	}
	v3, err := s.Put(ctx, "currentQuiz", []byte(`{"title":"c"}`), store.Absent)
	if err != nil || v3 != 3 {
		t.Fatalf("recreate: v=%d err=%v", v3, err)
	}
}

func TestKVStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "profile.db")

	first, err := NewKVStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := first.Put(ctx, "gameSessions", []byte(`[]`), store.AnyVersion); err != nil {
		t.Fatalf("put: %v", err)
	}
	_ = first.Close()

	second := newTestKVStore(t, path)
	rec, found, err := second.Get(ctx, "gameSessions")
	if err != nil || !found || rec.Version != 1 {
		t.Fatalf("expected persisted record, got %+v found=%v err=%v", rec, found, err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
}
