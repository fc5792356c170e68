package memory

import (
	"context"
	"sync"
	"time"
)

// Presence tracks contestant heartbeats in process memory.
type Presence struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.Mutex
	lastSeen map[string]map[string]time.Time
}

func NewPresence(ttl time.Duration) *Presence {
	return &Presence{
		ttl:      ttl,
		clock:    time.Now,
		lastSeen: make(map[string]map[string]time.Time),
	}
}

func (p *Presence) Touch(_ context.Context, sessionID, contestantID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen, ok := p.lastSeen[sessionID]
	if !ok {
		seen = make(map[string]time.Time)
		p.lastSeen[sessionID] = seen
	}
	seen[contestantID] = p.clock()
	return nil
}

func (p *Presence) Alive(_ context.Context, sessionID, contestantID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	at, ok := p.lastSeen[sessionID][contestantID]
	if !ok {
		return false, nil
	}
	return p.clock().Sub(at) < p.ttl, nil
}

func (p *Presence) Forget(_ context.Context, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.lastSeen, sessionID)
	return nil
}
