package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-arena/internal/domain"
)

// QuizLoader fetches the quiz definition from the backing store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, key string) (domain.Quiz, error)
}

// QuizCache caches quiz definitions with TTL so pollers do not hammer the store.
type QuizCache struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
	// gen is bumped by Invalidate; a fill that started before it is dropped.
	gen map[string]uint64
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizCache(loader QuizLoader, ttl time.Duration) *QuizCache {
	return &QuizCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
		gen:    make(map[string]uint64),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, key string) (domain.Quiz, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.quiz, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.quiz, nil
		}
		gen := c.gen[key]
		c.mu.RUnlock()

		quiz, err := c.loader.LoadQuiz(ctx, key)
		if err != nil {
			return domain.Quiz{}, err
		}

		expiresAt := now.Add(c.ttlWithJitter())
		c.mu.Lock()
		if c.gen[key] == gen {
			c.cache[key] = cachedQuiz{
				quiz:      quiz,
				expiresAt: expiresAt,
			}
		}
		c.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate drops the cached entry after the quiz was rewritten.
func (c *QuizCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.cache, key)
	c.gen[key]++
	c.mu.Unlock()
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
