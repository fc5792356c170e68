package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval is how often viewers re-read shared records.
const DefaultPollInterval = 2 * time.Second

// Subscriber delivers a record every time it changes. The polling
// implementation below can be swapped for a push transport.
type Subscriber interface {
	Subscribe(ctx context.Context, key string) (<-chan Record, func())
}

// Poller implements Subscriber by re-reading the key on a fixed interval.
type Poller struct {
	store    Store
	interval time.Duration
	logger   *zap.Logger
}

func NewPoller(s Store, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{store: s, interval: interval, logger: logger}
}

// Subscribe emits the current record right away, then every version change.
// A missing or deleted key is delivered once as a record with Version Absent.
// The caller must invoke the returned cancel function to stop polling.
func (p *Poller) Subscribe(ctx context.Context, key string) (<-chan Record, func()) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan Record, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(ch)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		last := Version(-2)
		for {
			rec, found, err := p.store.Get(ctx, key)
			switch {
			case err != nil:
				if ctx.Err() == nil {
					p.logger.Warn("poll failed", zap.String("key", key), zap.Error(err))
				}
			case !found && last != Absent:
				last = Absent
				publish(ch, Record{Key: key, Version: Absent})
			case found && rec.Version != last:
				last = rec.Version
				publish(ch, rec)
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}

// publish replaces an unread stale record instead of blocking the poll loop.
func publish(ch chan Record, rec Record) {
	select {
	case ch <- rec:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- rec
	}
}
