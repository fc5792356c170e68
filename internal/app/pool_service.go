package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-arena/internal/domain"
	"quiz-arena/internal/importer"
	"quiz-arena/internal/store"
)

// QuizCache serves quiz definitions from memory in front of the store.
type QuizCache interface {
	GetQuiz(ctx context.Context, key string) (domain.Quiz, error)
	Invalidate(key string)
}

// QuizLoader reads the quiz definition straight from the store.
type QuizLoader struct {
	store store.Store
}

func NewQuizLoader(s store.Store) *QuizLoader {
	return &QuizLoader{store: s}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, key string) (domain.Quiz, error) {
	quiz, _, found, err := store.GetJSON[domain.Quiz](ctx, l.store, key)
	if err != nil {
		return domain.Quiz{}, err
	}
	if !found {
		return domain.Quiz{}, domain.ErrPoolNotLoaded
	}
	return quiz, nil
}

// PoolService owns the authored quiz: its title, description and question pool.
type PoolService struct {
	store   store.Store
	keys    store.Keys
	loader  *QuizLoader
	cache   QuizCache
	retries int
	now     func() time.Time
	logger  *zap.Logger
}

// NewPoolService wires the service. cache may be nil.
func NewPoolService(s store.Store, keys store.Keys, cache QuizCache, logger *zap.Logger) *PoolService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolService{
		store:   s,
		keys:    keys,
		loader:  NewQuizLoader(s),
		cache:   cache,
		retries: DefaultMaxRetries,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

// Quiz returns the stored quiz definition or domain.ErrPoolNotLoaded.
func (p *PoolService) Quiz(ctx context.Context) (domain.Quiz, error) {
	if p.cache != nil {
		return p.cache.GetQuiz(ctx, p.keys.Quiz())
	}
	return p.loader.LoadQuiz(ctx, p.keys.Quiz())
}

// Pool returns the validated question pool of the stored quiz.
func (p *PoolService) Pool(ctx context.Context) (domain.QuestionPool, error) {
	quiz, err := p.Quiz(ctx)
	if err != nil {
		return domain.QuestionPool{}, err
	}
	return quiz.Pool()
}

// SaveQuiz replaces the stored quiz. Question ids are renumbered q1..qN.
func (p *PoolService) SaveQuiz(ctx context.Context, title, description string, questions []domain.QuestionRecord) (domain.Quiz, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Quiz{}, domain.ErrEmptyTitle
	}
	quiz := domain.Quiz{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(description),
		Questions:   renumber(questions),
		CreatedAt:   p.now(),
	}
	if err := validateQuiz(quiz); err != nil {
		return domain.Quiz{}, err
	}

	// authoring is single-writer, last write wins
	if _, err := store.PutJSON(ctx, p.store, p.keys.Quiz(), quiz, store.AnyVersion); err != nil {
		return domain.Quiz{}, err
	}
	p.invalidate()
	p.logger.Info("quiz saved", zap.String("title", quiz.Title), zap.Int("questions", len(quiz.Questions)))
	return quiz, nil
}

// AddQuestion appends one question to the stored quiz.
func (p *PoolService) AddQuestion(ctx context.Context, q domain.QuestionRecord) (domain.Quiz, error) {
	quiz, err := mutate(ctx, p.store, p.keys.Quiz(), p.retries, func(cur domain.Quiz, found bool) (domain.Quiz, error) {
		if !found {
			return cur, domain.ErrPoolNotLoaded
		}
		cur.Questions = renumber(append(append([]domain.QuestionRecord(nil), cur.Questions...), q))
		if err := validateQuiz(cur); err != nil {
			return cur, err
		}
		return cur, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	p.invalidate()
	return quiz, nil
}

// ImportReport summarises one import run.
type ImportReport struct {
	Quiz     domain.Quiz `json:"quiz"`
	Imported int         `json:"imported"`
	Skipped  int         `json:"skipped"`
	Errors   []string    `json:"errors,omitempty"`
}

// Import parses raw question text and appends it to the stored quiz, or
// replaces the stored questions when replace is set. title is required only
// when no quiz exists yet.
func (p *PoolService) Import(ctx context.Context, raw string, format importer.Format, title string, replace bool) (ImportReport, error) {
	res, err := importer.Parse(raw, format)
	if err != nil {
		return ImportReport{}, err
	}

	report := ImportReport{Imported: res.Imported(), Skipped: res.Skipped}
	for _, rowErr := range res.Errors {
		report.Errors = append(report.Errors, rowErr.Error())
	}

	quiz, err := mutate(ctx, p.store, p.keys.Quiz(), p.retries, func(cur domain.Quiz, found bool) (domain.Quiz, error) {
		if !found {
			cur = domain.Quiz{ID: uuid.NewString(), CreatedAt: p.now()}
		}
		if t := strings.TrimSpace(title); t != "" {
			cur.Title = t
		}
		if cur.Title == "" {
			return cur, domain.ErrEmptyTitle
		}
		questions := res.Questions
		if !replace {
			questions = append(append([]domain.QuestionRecord(nil), cur.Questions...), res.Questions...)
		}
		cur.Questions = renumber(questions)
		if err := validateQuiz(cur); err != nil {
			return cur, err
		}
		return cur, nil
	})
	if err != nil {
		return ImportReport{}, err
	}
	p.invalidate()

	p.logger.Info("questions imported",
		zap.Int("imported", report.Imported),
		zap.Int("skipped", report.Skipped),
		zap.Int("total", len(quiz.Questions)),
	)
	report.Quiz = quiz
	return report, nil
}

func (p *PoolService) invalidate() {
	if p.cache != nil {
		p.cache.Invalidate(p.keys.Quiz())
	}
}

func renumber(questions []domain.QuestionRecord) []domain.QuestionRecord {
	out := make([]domain.QuestionRecord, len(questions))
	for i, q := range questions {
		q.ID = fmt.Sprintf("q%d", i+1)
		out[i] = q
	}
	return out
}

func validateQuiz(quiz domain.Quiz) error {
	if len(quiz.Questions) == 0 {
		return fmt.Errorf("%w: quiz has no questions", domain.ErrValidation)
	}
	_, err := quiz.Pool()
	return err
}
