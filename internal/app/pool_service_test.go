package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"quiz-arena/internal/app"
	"quiz-arena/internal/domain"
	"quiz-arena/internal/importer"
	"quiz-arena/internal/infra/memory"
	"quiz-arena/internal/store"
)

const sampleCSV = `What is 2+2?,3,4,5,6,B,Basic math
Capital of France?,Berlin,Madrid,Paris,Rome,C,
`

func TestPoolServiceSaveAndAdd(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	pools := app.NewPoolService(kv, store.Keys{}, nil, zap.NewNop())

	if _, err := pools.Pool(ctx); !errors.Is(err, domain.ErrPoolNotLoaded) {
		t.Fatalf("expected pool not loaded, got %v", err)
	}
	if _, err := pools.AddQuestion(ctx, validQuestion("x")); !errors.Is(err, domain.ErrPoolNotLoaded) {
		t.Fatalf("expected add without quiz to fail, got %v", err)
	}
	if _, err := pools.SaveQuiz(ctx, "", "", []domain.QuestionRecord{validQuestion("a")}); !errors.Is(err, domain.ErrEmptyTitle) {
		t.Fatalf("expected title error, got %v", err)
	}

	bad := validQuestion("bad")
	bad.Options = bad.Options[:3]
	if _, err := pools.SaveQuiz(ctx, "Trivia", "", []domain.QuestionRecord{bad}); !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected invalid question, got %v", err)
	}

	if _, err := pools.SaveQuiz(ctx, "Trivia", "Warm-up", []domain.QuestionRecord{validQuestion("a"), validQuestion("b")}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	quiz, err := pools.AddQuestion(ctx, validQuestion("c"))
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(quiz.Questions) != 3 || quiz.Questions[2].ID != "q3" || quiz.Questions[2].Prompt != "c" {
		t.Fatalf("unexpected questions %+v", quiz.Questions)
	}

	pool, err := pools.Pool(ctx)
	if err != nil || pool.Len() != 3 || pool.Title() != "Trivia" {
		t.Fatalf("unexpected pool len=%d err=%v", pool.Len(), err)
	}
	if q, _ := pool.ByNumber(1); q.Points != domain.DefaultPoints {
		t.Fatalf("expected default points, got %d", q.Points)
	}
}

func TestPoolServiceImport(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	pools := app.NewPoolService(kv, store.Keys{}, nil, nil)

	if _, err := pools.Import(ctx, sampleCSV, importer.FormatCSV, "", false); !errors.Is(err, domain.ErrEmptyTitle) {
		t.Fatalf("expected a title to be required for the first import, got %v", err)
	}

	report, err := pools.Import(ctx, sampleCSV, importer.FormatAuto, "Geo", false)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if report.Imported != 2 || len(report.Quiz.Questions) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}

	report, err = pools.Import(ctx, sampleCSV, importer.FormatCSV, "", false)
	if err != nil {
		t.Fatalf("append import failed: %v", err)
	}
	if len(report.Quiz.Questions) != 4 || report.Quiz.Title != "Geo" || report.Quiz.Questions[3].ID != "q4" {
		t.Fatalf("expected appended questions, got %+v", report.Quiz)
	}

	report, err = pools.Import(ctx, sampleCSV, importer.FormatCSV, "", true)
	if err != nil || len(report.Quiz.Questions) != 2 {
		t.Fatalf("expected replace to keep only imported questions, got %d err=%v", len(report.Quiz.Questions), err)
	}
}

type countingLoader struct {
	inner *app.QuizLoader
	loads int
}

func (c *countingLoader) LoadQuiz(ctx context.Context, key string) (domain.Quiz, error) {
	c.loads++
	return c.inner.LoadQuiz(ctx, key)
}

func TestPoolServiceInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	loader := &countingLoader{inner: app.NewQuizLoader(kv)}
	cache := memory.NewQuizCache(loader, time.Minute)
	pools := app.NewPoolService(kv, store.Keys{}, cache, nil)

	if _, err := pools.SaveQuiz(ctx, "Trivia", "", []domain.QuestionRecord{validQuestion("a")}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	_, _ = pools.Quiz(ctx)
	_, _ = pools.Quiz(ctx)
	if loader.loads != 1 {
		t.Fatalf("expected cached reads, got %d loads", loader.loads)
	}

	if _, err := pools.AddQuestion(ctx, validQuestion("b")); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	quiz, err := pools.Quiz(ctx)
	if err != nil || len(quiz.Questions) != 2 || loader.loads != 2 {
		t.Fatalf("expected reload after write, got %d questions, %d loads, err=%v", len(quiz.Questions), loader.loads, err)
	}
}

func validQuestion(prompt string) domain.QuestionRecord {
	return domain.QuestionRecord{
		Prompt:             prompt,
		Options:            []string{"one", "two", "three", "four"},
		CorrectOptionIndex: 1,
	}
}
