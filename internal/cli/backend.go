package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quiz-arena/internal/app"
	"quiz-arena/internal/config"
	"quiz-arena/internal/infra/memory"
	"quiz-arena/internal/infra/postgres"
	infraredis "quiz-arena/internal/infra/redis"
	"quiz-arena/internal/infra/sqlite"
	"quiz-arena/internal/store"
)

// backend is everything a command needs to talk to the configured store.
type backend struct {
	cfg      config.Config
	logger   *zap.Logger
	store    store.Store
	keys     store.Keys
	presence app.PresenceTracker
	redis    *redis.Client
	closers  []func()
}

func newLogger(cfg config.Config, quiet bool) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Log.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	if quiet {
		zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return zc.Build()
}

// setup loads the config, builds the logger and opens the store. Interactive
// commands pass quiet so info logs do not interleave with prompts.
func setup(ctx context.Context, configPath string, quiet bool) (*backend, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, quiet)
	if err != nil {
		return nil, err
	}
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return b, nil
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backend, error) {
	b := &backend{
		cfg:    cfg,
		logger: logger,
		keys:   store.Keys{Namespace: cfg.Store.Namespace},
	}
	presenceTTL := config.TTLDuration(cfg.Presence.TTL, 30*time.Second)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	driver := strings.ToLower(cfg.Store.Driver)
	switch driver {
	case config.DriverMemory:
		b.store = memory.NewKVStore()
	case config.DriverSQLite:
		s, err := sqlite.NewKVStore(cfg.Store.SQLitePath)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		b.closers = append(b.closers, func() { _ = s.Close() })
		b.store = s
	case config.DriverRedis:
		b.store = infraredis.NewKVStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
	case config.DriverPostgres:
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			b.Close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		b.store = postgres.NewKVStore(pool)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	b.redis = redisClient
	if redisClient != nil {
		b.presence = infraredis.NewPresence(redisClient, presenceTTL)
	} else {
		b.presence = memory.NewPresence(presenceTTL)
	}

	logger.Info("store opened",
		zap.String("driver", driver),
		zap.String("namespace", cfg.Store.Namespace),
		zap.Bool("redis_presence", redisClient != nil),
	)
	return b, nil
}

// Close releases backend connections in reverse order and flushes the logger.
func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
	_ = b.logger.Sync()
}

func (b *backend) pollInterval() time.Duration {
	return config.TTLDuration(b.cfg.Game.PollInterval, store.DefaultPollInterval)
}

// pools caches the quiz definition in Redis when one is configured so every
// process shares the copy, in memory otherwise.
func (b *backend) pools() *app.PoolService {
	loader := app.NewQuizLoader(b.store)
	ttl := config.TTLDuration(b.cfg.Quiz.CacheTTL, 5*time.Second)
	var cache app.QuizCache = memory.NewQuizCache(loader, ttl)
	if b.redis != nil {
		cache = infraredis.NewQuizCache(b.redis, loader, ttl)
	}
	return app.NewPoolService(b.store, b.keys, cache, b.logger)
}

func (b *backend) sessions(pools app.PoolReader) *app.SessionService {
	poller := store.NewPoller(b.store, b.pollInterval(), b.logger)
	return app.NewSessionService(b.store, b.keys, pools, b.presence, poller, b.logger, app.SessionOptions{
		MaxRetries: b.cfg.Store.MaxRetries,
	})
}
