// Package countdown drives per-second game timers.
package countdown

import (
	"sync"
	"time"
)

// Timer calls tick once per interval until stopped. Stop is safe to call from
// inside the tick callback and more than once.
type Timer struct {
	stop chan struct{}
	once sync.Once
}

// Start launches a ticker goroutine. The callback runs on that goroutine.
func Start(interval time.Duration, tick func()) *Timer {
	t := &Timer{stop: make(chan struct{})}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				select {
				case <-t.stop:
					return
				default:
				}
				tick()
			}
		}
	}()
	return t
}

// Stop cancels future ticks. A tick already running is not interrupted, so
// callers guard their state with their own lock and a generation check.
func (t *Timer) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.stop) })
}

// Stopped reports whether Stop has been called.
func (t *Timer) Stopped() bool {
	if t == nil {
		return true
	}
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}
