package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-arena/internal/domain"
)

// QuizLoader fetches the quiz definition from the primary store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, key string) (domain.Quiz, error)
}

// QuizCache keeps the encoded quiz definition in Redis so every process
// sharing the instance reads through one cached copy:
//
//	SET quizcache:{key} {json} EX {ttl}
type QuizCache struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuizCache(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizCache {
	return &QuizCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, key string) (domain.Quiz, error) {
	if quiz, ok := c.cached(ctx, key); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// another caller may have filled it meanwhile
		if quiz, ok := c.cached(ctx, key); ok {
			return quiz, nil
		}
		quiz, err := c.loader.LoadQuiz(ctx, key)
		if err != nil {
			return domain.Quiz{}, err
		}
		if data, err := json.Marshal(quiz); err == nil {
			_ = c.client.Set(ctx, cacheKey(key), data, c.ttlWithJitter()).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate drops the cached copy after the quiz was rewritten.
func (c *QuizCache) Invalidate(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = c.client.Del(ctx, cacheKey(key)).Err()
}

func (c *QuizCache) cached(ctx context.Context, key string) (domain.Quiz, bool) {
	data, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

func cacheKey(key string) string {
	return "quizcache:" + key
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
