package selfpaced

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"quiz-arena/internal/domain"
	"quiz-arena/internal/infra/memory"
	"quiz-arena/internal/store"
)

func TestRunnerPersistsAndCompletes(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	runner := NewRunner(kv, store.Keys{}, zaptest.NewLogger(t), Options{TickInterval: time.Hour})
	t.Cleanup(runner.Close)

	if _, err := runner.Complete(ctx); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected no quiz, got %v", err)
	}

	if _, err := runner.Start(ctx, "Quiz", samplePool(t, 4), 2, 5); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := runner.SelectAnswer(ctx, "q1", 0); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := runner.Next(ctx); err != nil {
		t.Fatalf("next: %v", err)
	}

	stored, _, found, err := store.GetJSON[State](ctx, kv, store.Keys{}.SelfPaced())
	if err != nil || !found || stored.CurrentIndex != 1 || stored.TimeLeft != 300 || len(stored.Answers) != 1 {
		t.Fatalf("unexpected stored state %+v found=%v err=%v", stored, found, err)
	}

	result, err := runner.Complete(ctx)
	if err != nil || result.CorrectAnswers != 1 || result.TotalQuestions != 2 {
		t.Fatalf("unexpected result %+v err=%v", result, err)
	}
	again, _ := runner.Complete(ctx)
	if !again.CompletedAt.Equal(result.CompletedAt) {
		t.Fatalf("second complete should return the first result")
	}

	saved, err := runner.Result(ctx)
	if err != nil || saved.CorrectAnswers != 1 {
		t.Fatalf("expected stored result, got %+v err=%v", saved, err)
	}
	if _, err := runner.SelectAnswer(ctx, "q2", 1); !errors.Is(err, domain.ErrQuizCompleted) {
		t.Fatalf("expected completed quiz to reject answers, got %v", err)
	}
}

func TestRunnerTimesOut(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	runner := NewRunner(kv, store.Keys{}, zaptest.NewLogger(t), Options{TickInterval: time.Millisecond})
	t.Cleanup(runner.Close)

	if _, err := runner.Start(ctx, "Quiz", samplePool(t, 2), 0, 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if result, err := runner.Result(ctx); err == nil {
			if result.TimeSpent != 60 {
				t.Fatalf("expected full time spent, got %d", result.TimeSpent)
			}
			state, _ := runner.State()
			if !state.Completed || state.TimeLeft != 0 {
				t.Fatalf("expected completed state, got %+v", state)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("quiz did not time out")
}

func TestRunnerResume(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()

	first := NewRunner(kv, store.Keys{}, nil, Options{TickInterval: time.Hour})
	_, _ = first.Start(ctx, "Quiz", samplePool(t, 3), 0, 1)
	_, _ = first.GoTo(ctx, 2)
	first.Close()

	second := NewRunner(kv, store.Keys{}, nil, Options{TickInterval: time.Hour})
	t.Cleanup(second.Close)
	state, err := second.Resume(ctx)
	if err != nil || state.CurrentIndex != 2 || state.Completed {
		t.Fatalf("unexpected resumed state %+v err=%v", state, err)
	}
	if _, err := second.Previous(ctx); err != nil {
		t.Fatalf("previous after resume: %v", err)
	}
}

func TestRunnerKeepsAttemptWhenStoreRejectsWrite(t *testing.T) {
	ctx := context.Background()
	kv := &flakyStore{Store: memory.NewKVStore()}
	runner := NewRunner(kv, store.Keys{}, zaptest.NewLogger(t), Options{TickInterval: time.Hour})
	t.Cleanup(runner.Close)

	if _, err := runner.Start(ctx, "Quiz", samplePool(t, 2), 0, 5); err != nil {
		t.Fatalf("start: %v", err)
	}

	kv.setFailing(true)
	if _, err := runner.SelectAnswer(ctx, "q1", 0); !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	if _, err := runner.Complete(ctx); !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected store error on complete, got %v", err)
	}
	state, _ := runner.State()
	if len(state.Answers) != 0 || state.Completed {
		t.Fatalf("failed writes changed the attempt: %+v", state)
	}

	kv.setFailing(false)
	if _, err := runner.SelectAnswer(ctx, "q1", 0); err != nil {
		t.Fatalf("retry answer: %v", err)
	}
	result, err := runner.Complete(ctx)
	if err != nil || result.CorrectAnswers != 1 {
		t.Fatalf("unexpected result %+v err=%v", result, err)
	}
}

// flakyStore fails every put while failing is set.
type flakyStore struct {
	store.Store
	mu      sync.Mutex
	failing bool
}

func (s *flakyStore) setFailing(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = v
}

func (s *flakyStore) Put(ctx context.Context, key string, value []byte, expected store.Version) (store.Version, error) {
	s.mu.Lock()
	failing := s.failing
	s.mu.Unlock()
	if failing {
		return store.Absent, domain.StoreError("put", key, errors.New("quota exceeded"))
	}
	return s.Store.Put(ctx, key, value, expected)
}
