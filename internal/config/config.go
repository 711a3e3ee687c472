// Package config assembles runtime configuration from the environment
// into an explicit struct passed to constructors; nothing reads env vars
// after startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	PostgresDSN string
	RedisAddr   string

	QueueKey         string
	ProcessingKey    string
	ProcessingMapKey string
	EventsPrefix     string

	Workers      int
	FetchTimeout time.Duration

	// StaleJobAfter is how long a running job may go untouched before
	// the reaper fails it; must exceed the longest pipeline run.
	StaleJobAfter time.Duration

	AIAPIKey  string
	AIBaseURL string
	AIModel   string
	AITimeout time.Duration
}

// Load reads .env (if present) and the environment. Required vars
// produce an error rather than a partial config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:      envOr("HTTP_ADDR", ":8080"),
		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		QueueKey:      envOr("REDIS_QUEUE_KEY", "jobs:queue"),
		Workers:       envIntOr("WORKERS", 4),
		FetchTimeout:  envDurationOr("FETCH_TIMEOUT", 30*time.Second),
		StaleJobAfter: envDurationOr("STALE_JOB_AFTER", 15*time.Minute),
		AIBaseURL:     os.Getenv("AI_BASE_URL"),
		AIModel:       envOr("AI_MODEL", "gemini-2.0-flash"),
		AITimeout:     envDurationOr("AI_TIMEOUT", 120*time.Second),
	}

	cfg.PostgresDSN = os.Getenv("POSTGRES_DSN")
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("missing env: POSTGRES_DSN")
	}

	cfg.ProcessingKey = envOr("REDIS_PROCESSING_KEY", "jobs:processing")
	cfg.ProcessingMapKey = envOr("REDIS_PROCESSING_MAP_KEY", cfg.ProcessingKey+":map")
	cfg.EventsPrefix = envOr("REDIS_EVENTS_PREFIX", "jobs:events:")

	cfg.AIAPIKey = os.Getenv("AI_API_KEY")

	return cfg, nil
}

// RequireAIKey is used by the worker binary, the only process that
// talks to the conversion service.
func (c *Config) RequireAIKey() error {
	if c.AIAPIKey == "" {
		return fmt.Errorf("missing env: AI_API_KEY")
	}
	return nil
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envDurationOr(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
