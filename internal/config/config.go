// Package config loads and validates process configuration from the
// environment, in the style of email-service/internal/config and
// join-service/internal/config: a flat struct, godotenv for local .env
// loading, and small getEnv*/fatal-on-missing helpers.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every env-driven setting shared by the Scheduler, Pump and
// Worker processes (spec.md §6 "Environment / Config").
type Config struct {
	Env      string
	LogLevel string

	DatabaseURL string
	RabbitMQURL string

	// Scheduler/Pump cadence
	SchedulerTickInterval time.Duration
	PumpTickInterval      time.Duration
	SchedulerBatchSize    int
	PumpBatchSize         int

	// Worker
	WorkerPrefetch    int
	WorkerMaxRetries  int
	WorkerConsumerTag string

	// Redis catalog cache (optional, fail-open)
	RedisURL     string
	RedisEnabled bool

	// Observability
	EnableMetrics bool
	EnableDebug   bool
	MetricsAddr   string

	// Email provider
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	SESFromAddress     string

	// Template processing
	MainAppBaseURL string
	GeminiAPIKey   string

	ShutdownGrace time.Duration
}

// Load reads and validates configuration, returning an error for any
// required variable that is missing or malformed (spec.md §6: "the process
// refuses to start with an incomplete environment").
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Env = getEnv("NODE_ENV", "development")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	if !validEnvs[cfg.Env] {
		return nil, fmt.Errorf("invalid NODE_ENV %q: must be one of development, production, test", cfg.Env)
	}
	if !validLogLevels[cfg.LogLevel] {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: must be one of error, warn, info, debug", cfg.LogLevel)
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("missing required env var: DATABASE_URL")
	}

	// RABBIT_MQ_URL is "required for Pump and Worker" per spec.md §6, not
	// for the Scheduler, which never touches the broker. Load() leaves it
	// unvalidated here; RequireRabbitMQ is what cmd/pump and cmd/worker
	// call to enforce it for themselves.
	cfg.RabbitMQURL = strings.TrimSpace(os.Getenv("RABBIT_MQ_URL"))

	// Idle-state tick/poll interval; the found-state interval is derived
	// from this (spec.md §4.1/§4.2 default pairs: 3s/10s and 1s/10s).
	cfg.SchedulerTickInterval = getDuration("SCHEDULER_TICK_INTERVAL", 10*time.Second)
	cfg.PumpTickInterval = getDuration("PUMP_TICK_INTERVAL", 10*time.Second)
	cfg.SchedulerBatchSize = getInt("SCHEDULER_BATCH_SIZE", 50)
	cfg.PumpBatchSize = getInt("PUMP_BATCH_SIZE", 10)

	// spec.md §4.3: "prefetch = 1" and retry bound "maxRetries (3)" are
	// fixed contract values; the env vars exist only so an operator can
	// retune them without a rebuild, and default to exactly the spec's
	// numbers.
	cfg.WorkerPrefetch = getInt("WORKER_PREFETCH", 1)
	cfg.WorkerMaxRetries = getInt("WORKER_MAX_RETRIES", 3)
	cfg.WorkerConsumerTag = getEnv("WORKER_CONSUMER_TAG", "lead-sequencer-worker")

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.RedisEnabled = cfg.RedisURL != ""

	cfg.EnableMetrics = getBool("ENABLE_METRICS", false)
	cfg.EnableDebug = getBool("ENABLE_DEBUG", false)
	cfg.MetricsAddr = getEnv("METRICS_ADDR", ":9090")

	cfg.AWSRegion = os.Getenv("AWS_REGION")
	cfg.AWSAccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.AWSSecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	cfg.SESFromAddress = getEnv("SES_FROM_ADDRESS", "no-reply@example.com")

	cfg.MainAppBaseURL = strings.TrimRight(getEnv("MAIN_APP_BASE_URL", "http://localhost:3000"), "/")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	cfg.ShutdownGrace = getDuration("SHUTDOWN_GRACE", 5*time.Second)

	// spec.md §6: "AWS_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY —
	// required for SES provider in production."
	if cfg.Env == "production" {
		if cfg.AWSRegion == "" || cfg.AWSAccessKeyID == "" || cfg.AWSSecretAccessKey == "" {
			return nil, fmt.Errorf("AWS_REGION, AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required in production")
		}
		if cfg.SESFromAddress == "no-reply@example.com" {
			return nil, fmt.Errorf("SES_FROM_ADDRESS must be set explicitly in production")
		}
	}

	return cfg, nil
}

// RequireRabbitMQ enforces spec.md §6's "required for Pump and Worker"
// clause; cmd/pump and cmd/worker call this right after Load() since
// config.Load() itself stays broker-agnostic for the Scheduler's sake.
func (c *Config) RequireRabbitMQ() error {
	if c.RabbitMQURL == "" {
		return fmt.Errorf("missing required env var: RABBIT_MQ_URL")
	}
	return nil
}

var validEnvs = map[string]bool{"development": true, "production": true, "test": true}
var validLogLevels = map[string]bool{"error": true, "warn": true, "info": true, "debug": true}

// UseMockProvider reports whether the dev/test mock email provider should
// be used instead of the real SES provider (spec.md §6: "NODE_ENV gates
// provider selection").
func (c *Config) UseMockProvider() bool {
	return c.Env != "production"
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n := def
	_, _ = fmt.Sscanf(v, "%d", &n)
	if n <= 0 {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getBool(key string, def bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
