// Package config centralizes the environment variables consumed by the binaries.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config aggregates every parameter needed by the API and the sync worker.
type Config struct {
	HTTPAddress string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SyncQueueKey       string
	CounterKeyPrefix   string
	NotificationStream string

	ThrottleEnabled       bool
	ThrottleMaxVotes      int
	ThrottleWindowSeconds int
	ThrottleKeyPrefix     string

	SyncPushTimeout    time.Duration
	SyncMaxConcurrency int

	SchedulerInterval time.Duration

	AutoMigrate bool

	WorkerMetricsAddress string
}

func Load() (Config, error) {
	// Defaults favour local runs; everything can be overridden in Docker/K8s.
	cfg := Config{
		HTTPAddress:           getEnv("HTTP_ADDRESS", ":8080"),
		PostgresHost:          getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:          getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:          getEnv("POSTGRES_USER", "agora"),
		PostgresPassword:      getEnv("POSTGRES_PASSWORD", "agora"),
		PostgresDB:            getEnv("POSTGRES_DB", "agora_polls"),
		PostgresSSLMode:       getEnv("POSTGRES_SSLMODE", "disable"),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		SyncQueueKey:          getEnv("REDIS_SYNC_QUEUE", "sync:jobs"),
		CounterKeyPrefix:      getEnv("REDIS_COUNTER_PREFIX", "tally"),
		NotificationStream:    getEnv("REDIS_NOTIFICATION_OUTBOX", "outbox:notifications"),
		ThrottleEnabled:       getEnvAsBool("VOTE_THROTTLE_ENABLED", true),
		ThrottleMaxVotes:      getEnvAsInt("VOTE_THROTTLE_MAX", 30),
		ThrottleWindowSeconds: getEnvAsInt("VOTE_THROTTLE_WINDOW", 60),
		ThrottleKeyPrefix:     getEnv("VOTE_THROTTLE_PREFIX", "throttle"),
		SyncMaxConcurrency:    getEnvAsInt("SYNC_MAX_CONCURRENCY", 8),
		AutoMigrate:           getEnvAsBool("DB_AUTO_MIGRATE", true),
		WorkerMetricsAddress:  getEnv("WORKER_METRICS_ADDRESS", ":9090"),
	}

	pushTimeout := getEnvAsInt("SYNC_PUSH_TIMEOUT_SECONDS", 5)
	cfg.SyncPushTimeout = time.Duration(pushTimeout) * time.Second

	schedulerInterval := getEnvAsInt("SCHEDULER_INTERVAL_SECONDS", 30)
	cfg.SchedulerInterval = time.Duration(schedulerInterval) * time.Second

	dbStr := getEnv("REDIS_DB", "0")
	dbInt, err := strconv.Atoi(dbStr)
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = dbInt

	return cfg, nil
}

func (c Config) PostgresDSN() string {
	// DSN format stays compatible with GORM and the migration tooling.
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
		c.PostgresSSLMode,
	)
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvAsBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	switch value {
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return true
	}
}
