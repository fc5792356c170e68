package store_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"quiz-arena/internal/infra/memory"
	"quiz-arena/internal/store"
)

func TestPollerEmitsOnVersionChange(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	poller := store.NewPoller(kv, 5*time.Millisecond, zaptest.NewLogger(t))

	updates, cancel := poller.Subscribe(ctx, "gameSessions")
	defer cancel()

	first := next(t, updates)
	if first.Version != store.Absent {
		t.Fatalf("expected absent marker first, got %+v", first)
	}

	if _, err := kv.Put(ctx, "gameSessions", []byte(`[1]`), store.AnyVersion); err != nil {
		t.Fatalf("put: %v", err)
	}
	rec := next(t, updates)
	if rec.Version != 1 || string(rec.Value) != `[1]` {
		t.Fatalf("unexpected record %+v", rec)
	}

	if _, err := kv.Put(ctx, "gameSessions", []byte(`[1,2]`), store.AnyVersion); err != nil {
		t.Fatalf("put: %v", err)
	}
	rec = next(t, updates)
	if rec.Version != 2 {
		t.Fatalf("expected version 2, got %+v", rec)
	}

	_ = kv.Delete(ctx, "gameSessions")
	rec = next(t, updates)
	if rec.Version != store.Absent {
		t.Fatalf("expected deletion marker, got %+v", rec)
	}
}

func TestPollerCancelClosesChannel(t *testing.T) {
	kv := memory.NewKVStore()
	poller := store.NewPoller(kv, time.Millisecond, nil)
	updates, cancel := poller.Subscribe(context.Background(), "k")
	cancel()
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("channel not closed after cancel")
		}
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()

	type doc struct {
		Name string `json:"name"`
	}
	if _, _, found, err := store.GetJSON[doc](ctx, kv, "d"); found || err != nil {
		t.Fatalf("expected absent doc, found=%v err=%v", found, err)
	}
	v, err := store.PutJSON(ctx, kv, "d", doc{Name: "quiz"}, store.Absent)
	if err != nil {
		t.Fatalf("put json: %v", err)
	}
	got, version, found, err := store.GetJSON[doc](ctx, kv, "d")
	if err != nil || !found || version != v || got.Name != "quiz" {
		t.Fatalf("unexpected doc %+v v=%d found=%v err=%v", got, version, found, err)
	}
}

func next(t *testing.T, ch <-chan store.Record) store.Record {
	t.Helper()
	select {
	case rec := <-ch:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for update")
	}
	return store.Record{}
}

func TestKeysUseNamespace(t *testing.T) {
	keys := store.Keys{Namespace: "arena"}
	if keys.Sessions() != "arena:gameSessions" || keys.Contestant("c1") != "arena:contestantSession:c1" {
		t.Fatalf("unexpected keys %q %q", keys.Sessions(), keys.Contestant("c1"))
	}
	if (store.Keys{}).Quiz() != "currentQuiz" {
		t.Fatalf("expected bare key without namespace")
	}
}
