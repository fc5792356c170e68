package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Store struct {
		Driver     string `yaml:"driver"`
		Namespace  string `yaml:"namespace"`
		MaxRetries int    `yaml:"max_retries"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Presence struct {
		TTL string `yaml:"ttl"`
	} `yaml:"presence"`
	Janitor struct {
		Schedule      string `yaml:"schedule"`
		SessionMaxAge string `yaml:"session_max_age"`
	} `yaml:"janitor"`
	Game struct {
		TurnSeconds  int    `yaml:"turn_seconds"`
		ResultDelay  string `yaml:"result_delay"`
		PollInterval string `yaml:"poll_interval"`
	} `yaml:"game"`
	Quiz struct {
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"quiz"`
	Log struct {
		Development bool `yaml:"development"`
	} `yaml:"log"`
}

// Default is the configuration used when no file exists: a local SQLite
// profile on port 8080.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Store.Driver = DriverSQLite
	cfg.Store.Namespace = "quiz-arena"
	cfg.Store.MaxRetries = 3
	cfg.Store.SQLitePath = "quiz-arena.db"
	cfg.Redis.TTL = "24h"
	cfg.Presence.TTL = "30s"
	cfg.Janitor.Schedule = "@every 15s"
	cfg.Janitor.SessionMaxAge = "24h"
	cfg.Game.TurnSeconds = 30
	cfg.Game.ResultDelay = "3s"
	cfg.Game.PollInterval = "2s"
	cfg.Quiz.CacheTTL = "5s"
	return cfg
}

// Load reads YAML config from path over the defaults. A missing file is not an
// error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects unknown drivers and drivers missing their connection
// settings.
func (c Config) Validate() error {
	switch strings.ToLower(c.Store.Driver) {
	case DriverMemory, DriverSQLite:
	case DriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("store driver redis needs redis.addr")
		}
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return errors.New("store driver postgres needs postgres.url")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.MaxRetries < 0 {
		return errors.New("store.max_retries must not be negative")
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
