package gameshow

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"quiz-arena/internal/countdown"
	"quiz-arena/internal/domain"
	"quiz-arena/internal/store"
)

// DefaultResultDelay keeps the last result on screen before the game ends.
const DefaultResultDelay = 3 * time.Second

// SessionSync is the part of the session service a bound game writes to.
type SessionSync interface {
	SyncScores(ctx context.Context, id string, scores map[string]int) (domain.GameSession, error)
	Finish(ctx context.Context, id string) (domain.GameSession, error)
}

// Options tunes a Controller. Zero values select defaults.
type Options struct {
	TurnSeconds  int
	ResultDelay  time.Duration
	TickInterval time.Duration
	// OnChange, when set, receives every new snapshot. It is called with the
	// controller lock held and must not call back into the controller.
	OnChange func(State)
}

// Controller owns one running game: it serialises actions, drives the turn
// countdown and persists every change to the store.
type Controller struct {
	store    store.Store
	key      string
	sessions SessionSync
	opts     Options
	logger   *zap.Logger

	mu          sync.Mutex
	game        *Game
	version     store.Version
	timer       *countdown.Timer
	gen         uint64
	finishTimer *time.Timer
	closed      bool
}

// NewController wires a controller. sessions may be nil for a standalone game.
func NewController(s store.Store, keys store.Keys, sessions SessionSync, logger *zap.Logger, opts Options) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TurnSeconds <= 0 {
		opts.TurnSeconds = DefaultTurnSeconds
	}
	if opts.ResultDelay <= 0 {
		opts.ResultDelay = DefaultResultDelay
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	return &Controller{
		store:    s,
		key:      keys.GameShow(),
		sessions: sessions,
		opts:     opts,
		logger:   logger,
	}
}

// Begin replaces any stored game with a new one. sessionID binds the game to
// a hosted session whose roster receives the scores; it may be empty.
func (c *Controller) Begin(ctx context.Context, title, sessionID string, contestants []domain.Contestant, pool domain.QuestionPool) (State, error) {
	game, err := NewGame(title, contestants, pool, c.opts.TurnSeconds)
	if err != nil {
		return State{}, err
	}
	game.s.SessionID = sessionID

	c.mu.Lock()
	defer c.mu.Unlock()
	version, err := store.PutJSON(ctx, c.store, c.key, game.State(), store.AnyVersion)
	if err != nil {
		return State{}, err
	}
	c.stopTimersLocked()
	c.closed = false
	c.game = game
	c.version = version
	c.logger.Info("game show started",
		zap.String("title", title),
		zap.Int("contestants", len(contestants)),
		zap.Int("questions", pool.Len()),
	)
	c.notifyLocked()
	return c.snapshotLocked(), nil
}

// Resume loads the stored game and restarts its countdown if a question was open.
func (c *Controller) Resume(ctx context.Context) (State, error) {
	state, version, found, err := store.GetJSON[State](ctx, c.store, c.key)
	if err != nil {
		return State{}, err
	}
	if !found {
		return State{}, domain.ErrGameNotFound
	}
	game, err := Restore(state)
	if err != nil {
		return State{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimersLocked()
	c.closed = false
	c.game = game
	c.version = version
	switch {
	case game.Phase() == PhaseAnswering:
		c.startCountdownLocked()
	case game.Phase() == PhaseResult && game.Exhausted():
		c.scheduleFinishLocked()
	}
	c.notifyLocked()
	return c.snapshotLocked(), nil
}

// State returns the current snapshot.
func (c *Controller) State() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.game == nil {
		return State{}, domain.ErrGameNotFound
	}
	return c.snapshotLocked(), nil
}

func (c *Controller) SelectQuestion(ctx context.Context, number int) (State, error) {
	return c.act(ctx, func(g *Game) error {
		_, err := g.SelectQuestion(number)
		return err
	}, func(context.Context) {
		c.startCountdownLocked()
	})
}

func (c *Controller) ChooseOption(ctx context.Context, option int) (State, error) {
	return c.act(ctx, func(g *Game) error {
		return g.ChooseOption(option)
	}, nil)
}

// SubmitAnswer resolves the open question; option may be nil for no answer.
func (c *Controller) SubmitAnswer(ctx context.Context, option *int) (State, error) {
	return c.act(ctx, func(g *Game) error {
		_, err := g.SubmitAnswer(option)
		return err
	}, c.afterResolveLocked)
}

func (c *Controller) NextTurn(ctx context.Context) (State, error) {
	return c.act(ctx, func(g *Game) error {
		return g.NextTurn()
	}, func(ctx context.Context) {
		if c.game.Phase() == PhaseFinished {
			c.afterFinishLocked(ctx)
		}
	})
}

// Finish ends the game early.
func (c *Controller) Finish(ctx context.Context) (State, error) {
	return c.act(ctx, func(g *Game) error {
		_, err := g.Finish()
		return err
	}, c.afterFinishLocked)
}

// Close stops all timers. The stored game is kept so it can be resumed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopTimersLocked()
}

// act applies fn to a copy of the game and swaps it in only once the store
// accepted it. after runs on the committed game and may start timers or
// write to the bound session.
func (c *Controller) act(ctx context.Context, fn func(*Game) error, after func(context.Context)) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.game == nil {
		return State{}, domain.ErrGameNotFound
	}
	if c.closed {
		return State{}, domain.ErrWrongPhase
	}
	next := c.game.clone()
	if err := fn(next); err != nil {
		return State{}, err
	}
	if err := c.commitLocked(ctx, next); err != nil {
		return State{}, err
	}
	if after != nil {
		after(ctx)
	}
	c.notifyLocked()
	return c.snapshotLocked(), nil
}

func (c *Controller) startCountdownLocked() {
	c.stopCountdownLocked()
	c.gen++
	gen := c.gen
	c.timer = countdown.Start(c.opts.TickInterval, func() { c.tick(gen) })
}

func (c *Controller) stopCountdownLocked() {
	c.timer.Stop()
	c.timer = nil
}

func (c *Controller) stopTimersLocked() {
	c.stopCountdownLocked()
	c.gen++
	if c.finishTimer != nil {
		c.finishTimer.Stop()
		c.finishTimer = nil
	}
}

// tick runs on the countdown goroutine; gen discards ticks from a timer that
// was replaced or stopped after firing.
func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.game == nil || gen != c.gen {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	next := c.game.clone()
	result, resolved := next.Tick()
	if err := c.commitLocked(ctx, next); err != nil {
		// the countdown keeps running and the next tick retries
		c.logger.Warn("persist game show tick failed", zap.Error(err))
		return
	}
	if resolved {
		c.logger.Info("turn timed out",
			zap.String("question_id", result.QuestionID),
			zap.String("contestant_id", result.ContestantID),
		)
		c.afterResolveLocked(ctx)
	}
	c.notifyLocked()
}

func (c *Controller) afterResolveLocked(ctx context.Context) {
	c.stopCountdownLocked()
	c.gen++
	c.syncScoresLocked(ctx)
	if c.game.Exhausted() {
		c.scheduleFinishLocked()
	}
}

func (c *Controller) scheduleFinishLocked() {
	gen := c.gen
	c.finishTimer = time.AfterFunc(c.opts.ResultDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || c.game == nil || gen != c.gen || c.game.Phase() != PhaseResult {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		next := c.game.clone()
		if _, err := next.Finish(); err != nil {
			return
		}
		if err := c.commitLocked(ctx, next); err != nil {
			c.logger.Warn("persist finished game show failed", zap.Error(err))
			return
		}
		c.afterFinishLocked(ctx)
		c.notifyLocked()
	})
}

func (c *Controller) afterFinishLocked(ctx context.Context) {
	c.stopTimersLocked()
	if winner, ok := c.game.Winner(); ok {
		c.logger.Info("game show finished", zap.String("winner", winner.Name), zap.Int("score", winner.Score))
	}
	sessionID := c.game.s.SessionID
	if c.sessions == nil || sessionID == "" {
		return
	}
	c.syncScoresLocked(ctx)
	if _, err := c.sessions.Finish(ctx, sessionID); err != nil && !errors.Is(err, domain.ErrState) {
		c.logger.Warn("finish bound session failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (c *Controller) syncScoresLocked(ctx context.Context) {
	sessionID := c.game.s.SessionID
	if c.sessions == nil || sessionID == "" {
		return
	}
	if _, err := c.sessions.SyncScores(ctx, sessionID, c.game.Scores()); err != nil {
		c.logger.Warn("sync session scores failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// commitLocked writes next and makes it the live game.
func (c *Controller) commitLocked(ctx context.Context, next *Game) error {
	version, err := store.PutJSON(ctx, c.store, c.key, next.State(), c.version)
	if err != nil {
		return err
	}
	c.game = next
	c.version = version
	return nil
}

func (c *Controller) snapshotLocked() State {
	return c.game.State()
}

func (c *Controller) notifyLocked() {
	if c.opts.OnChange != nil {
		c.opts.OnChange(c.game.State())
	}
}
