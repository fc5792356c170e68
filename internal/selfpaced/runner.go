package selfpaced

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"quiz-arena/internal/countdown"
	"quiz-arena/internal/domain"
	"quiz-arena/internal/store"
)

// Options tunes a Runner.
type Options struct {
	TickInterval time.Duration
	// OnChange receives each new snapshot with the runner lock held.
	OnChange func(State)
}

// Runner hosts one self-paced attempt. It persists every change under the
// quiz config key and the final result under the results key.
type Runner struct {
	store  store.Store
	keys   store.Keys
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	quiz    *Quiz
	version store.Version
	timer   *countdown.Timer
	gen     uint64
}

func NewRunner(s store.Store, keys store.Keys, logger *zap.Logger, opts Options) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	return &Runner{store: s, keys: keys, opts: opts, logger: logger}
}

// Start begins a new attempt, replacing any stored one.
func (r *Runner) Start(ctx context.Context, title string, pool domain.QuestionPool, questionCount, timeLimitMinutes int) (State, error) {
	quiz, err := New(title, pool, questionCount, timeLimitMinutes)
	if err != nil {
		return State{}, err
	}
	if err := quiz.Begin(); err != nil {
		return State{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	version, err := store.PutJSON(ctx, r.store, r.keys.SelfPaced(), quiz.State(), store.AnyVersion)
	if err != nil {
		return State{}, err
	}
	r.stopLocked()
	r.quiz = quiz
	r.version = version
	r.startLocked()
	r.logger.Info("self-paced quiz started",
		zap.String("title", quiz.s.Title),
		zap.Int("questions", quiz.s.Questions.Len()),
		zap.Int("minutes", timeLimitMinutes),
	)
	r.notifyLocked()
	return r.quiz.State(), nil
}

// Resume loads the stored attempt and keeps counting down if it is unfinished.
func (r *Runner) Resume(ctx context.Context) (State, error) {
	state, version, found, err := store.GetJSON[State](ctx, r.store, r.keys.SelfPaced())
	if err != nil {
		return State{}, err
	}
	if !found {
		return State{}, domain.ErrGameNotFound
	}
	quiz, err := Restore(state)
	if err != nil {
		return State{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.quiz = quiz
	r.version = version
	if !quiz.Completed() {
		if err := quiz.Begin(); err != nil {
			return State{}, err
		}
		r.startLocked()
	}
	return r.quiz.State(), nil
}

func (r *Runner) State() (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quiz == nil {
		return State{}, domain.ErrGameNotFound
	}
	return r.quiz.State(), nil
}

func (r *Runner) SelectAnswer(ctx context.Context, questionID string, option int) (State, error) {
	return r.act(ctx, func(q *Quiz) error {
		_, err := q.SelectAnswer(questionID, option)
		return err
	})
}

func (r *Runner) GoTo(ctx context.Context, i int) (State, error) {
	return r.act(ctx, func(q *Quiz) error {
		q.GoTo(i)
		return nil
	})
}

func (r *Runner) Next(ctx context.Context) (State, error) {
	return r.act(ctx, func(q *Quiz) error {
		q.Next()
		return nil
	})
}

func (r *Runner) Previous(ctx context.Context) (State, error) {
	return r.act(ctx, func(q *Quiz) error {
		q.Previous()
		return nil
	})
}

// Complete ends the attempt and stores the result. Completing twice returns
// the first result.
func (r *Runner) Complete(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quiz == nil {
		return Result{}, domain.ErrGameNotFound
	}
	if r.quiz.Completed() {
		return *r.quiz.State().Result, nil
	}
	return r.completeLocked(ctx)
}

// Result reads the last stored result.
func (r *Runner) Result(ctx context.Context) (Result, error) {
	result, _, found, err := store.GetJSON[Result](ctx, r.store, r.keys.Results())
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, domain.ErrGameNotFound
	}
	return result, nil
}

// Close stops the countdown. The stored attempt is kept.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

// act applies fn to a copy of the attempt and keeps it only once stored.
func (r *Runner) act(ctx context.Context, fn func(*Quiz) error) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quiz == nil {
		return State{}, domain.ErrGameNotFound
	}
	next := r.quiz.clone()
	if err := fn(next); err != nil {
		return State{}, err
	}
	if err := r.commitLocked(ctx, next); err != nil {
		return State{}, err
	}
	r.notifyLocked()
	return r.quiz.State(), nil
}

// completeLocked stops the countdown only once the result is stored, so a
// failed completion leaves the attempt running.
func (r *Runner) completeLocked(ctx context.Context) (Result, error) {
	next := r.quiz.clone()
	result := next.Complete()
	if err := r.storeResultLocked(ctx, next, result); err != nil {
		return Result{}, err
	}
	r.stopLocked()
	return result, nil
}

// storeResultLocked writes the result first so a committed completed attempt
// always has its result stored.
func (r *Runner) storeResultLocked(ctx context.Context, next *Quiz, result Result) error {
	if _, err := store.PutJSON(ctx, r.store, r.keys.Results(), result, store.AnyVersion); err != nil {
		return err
	}
	if err := r.commitLocked(ctx, next); err != nil {
		return err
	}
	r.logger.Info("self-paced quiz completed",
		zap.Int("correct", result.CorrectAnswers),
		zap.Int("total", result.TotalQuestions),
		zap.Int("time_spent", result.TimeSpent),
	)
	r.notifyLocked()
	return nil
}

func (r *Runner) startLocked() {
	r.gen++
	gen := r.gen
	r.timer = countdown.Start(r.opts.TickInterval, func() { r.tick(gen) })
}

func (r *Runner) stopLocked() {
	r.timer.Stop()
	r.timer = nil
	r.gen++
}

func (r *Runner) tick(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quiz == nil || gen != r.gen || r.quiz.Completed() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	next := r.quiz.clone()
	if next.Tick() {
		// on failure the countdown stays running and the next tick retries
		if err := r.storeResultLocked(ctx, next, *next.State().Result); err != nil {
			r.logger.Warn("store timed out quiz failed", zap.Error(err))
			return
		}
		r.stopLocked()
		return
	}
	if err := r.commitLocked(ctx, next); err != nil {
		r.logger.Warn("persist quiz tick failed", zap.Error(err))
		return
	}
	r.notifyLocked()
}

func (r *Runner) commitLocked(ctx context.Context, next *Quiz) error {
	version, err := store.PutJSON(ctx, r.store, r.keys.SelfPaced(), next.State(), r.version)
	if err != nil {
		return err
	}
	r.quiz = next
	r.version = version
	return nil
}

func (r *Runner) notifyLocked() {
	if r.opts.OnChange != nil {
		r.opts.OnChange(r.quiz.State())
	}
}
