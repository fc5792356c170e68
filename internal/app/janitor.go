package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultJanitorSchedule runs the janitor every 15 seconds.
const DefaultJanitorSchedule = "@every 15s"

// Janitor periodically clears the connected flag of silent contestants and
// drops sessions past their maximum age.
type Janitor struct {
	sessions *SessionService
	maxAge   time.Duration
	timeout  time.Duration
	cron     *cron.Cron
	logger   *zap.Logger
}

func NewJanitor(sessions *SessionService, schedule string, maxAge time.Duration, logger *zap.Logger) (*Janitor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = DefaultJanitorSchedule
	}
	j := &Janitor{
		sessions: sessions,
		maxAge:   maxAge,
		timeout:  10 * time.Second,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger: logger,
	}
	if _, err := j.cron.AddFunc(schedule, j.tick); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.Info("janitor started")
}

// Stop halts the schedule and waits for a running pass to finish or ctx to end.
func (j *Janitor) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	j.logger.Info("janitor stopped")
}

// RunOnce performs a single reconcile and prune pass.
func (j *Janitor) RunOnce(ctx context.Context) (disconnected, pruned int, err error) {
	disconnected, err = j.sessions.ReconcilePresence(ctx)
	if err != nil {
		return 0, 0, err
	}
	pruned, err = j.sessions.PruneStale(ctx, j.maxAge)
	if err != nil {
		return disconnected, 0, err
	}
	return disconnected, pruned, nil
}

func (j *Janitor) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if _, _, err := j.RunOnce(ctx); err != nil {
		j.logger.Warn("janitor pass failed", zap.Error(err))
	}
}
