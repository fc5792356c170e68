package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-arena/internal/domain"
)

// Presence stores one expiring liveness marker per contestant heartbeat, so
// any instance sharing the Redis server sees the same connected state.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresence(client *redis.Client, ttl time.Duration) *Presence {
	return &Presence{client: client, ttl: ttl}
}

func (p *Presence) Touch(ctx context.Context, sessionID, contestantID string) error {
	key := p.key(sessionID, contestantID)
	if err := p.client.Set(ctx, key, "1", p.ttl).Err(); err != nil {
		return domain.StoreError("touch", key, err)
	}
	return nil
}

func (p *Presence) Alive(ctx context.Context, sessionID, contestantID string) (bool, error) {
	key := p.key(sessionID, contestantID)
	n, err := p.client.Exists(ctx, key).Result()
	if err != nil {
		return false, domain.StoreError("alive", key, err)
	}
	return n > 0, nil
}

func (p *Presence) Forget(ctx context.Context, sessionID string) error {
	pattern := "presence:" + sessionID + ":*"
	iter := p.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return domain.StoreError("forget", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := p.client.Del(ctx, keys...).Err(); err != nil {
		return domain.StoreError("forget", pattern, err)
	}
	return nil
}

func (p *Presence) key(sessionID, contestantID string) string {
	return "presence:" + sessionID + ":" + contestantID
}
