package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration from environment variables.
type Config struct {
	Port     int    `validate:"gt=0,lte=65535"`
	DBPath   string `validate:"required_without=DatabaseURL"`
	TestMode bool

	DatabaseURL string `validate:"omitempty,url"` // Postgres/Supabase; SQLite is used when empty
	DBMigrate   bool   // apply the trigger schema on startup (Postgres only)

	PollInterval    time.Duration `validate:"gte=0"` // SQLite change detection
	RefreshInterval time.Duration `validate:"gte=0"` // full re-fetch; 0 disables
	DetailCacheTTL  time.Duration `validate:"gte=0"`
	RequestTimeout  time.Duration `validate:"gt=0"`

	CatalogPath string // optional YAML overriding mock addresses and services

	RedisURL     string `validate:"omitempty,url"`
	KafkaBrokers string
	KafkaTopic   string `validate:"required_with=KafkaBrokers"`

	LogLevel string `validate:"oneof=debug info warn error"`
}

// Load reads .env (if present) and the environment, applies defaults and
// validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := &Config{
		Port:            envInt("PARADERO_PORT", 8080),
		DBPath:          envStr("PARADERO_DB_PATH", "./paradero.db"),
		TestMode:        envBool("PARADERO_TEST_MODE", false),
		DatabaseURL:     envStr("PARADERO_DATABASE_URL", ""),
		DBMigrate:       envBool("PARADERO_DB_MIGRATE", false),
		PollInterval:    envDuration("PARADERO_POLL_INTERVAL", 2*time.Second),
		RefreshInterval: envDuration("PARADERO_REFRESH_INTERVAL", 5*time.Minute),
		DetailCacheTTL:  envDuration("PARADERO_DETAIL_CACHE_TTL", 0),
		RequestTimeout:  envDuration("PARADERO_REQUEST_TIMEOUT", 10*time.Second),
		CatalogPath:     envStr("PARADERO_CATALOG", ""),
		RedisURL:        envStr("PARADERO_REDIS_URL", ""),
		KafkaBrokers:    envStr("PARADERO_KAFKA_BROKERS", ""),
		KafkaTopic:      envStr("PARADERO_KAFKA_TOPIC", "paradero.changes"),
		LogLevel:        strings.ToLower(envStr("PARADERO_LOG_LEVEL", "info")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints. Call it again after flags override
// loaded values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Source names the measurement backend for logs and the system panel.
func (c *Config) Source() string {
	if c.DatabaseURL != "" {
		return "postgres"
	}
	return "sqlite"
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go durations ("2s") or plain seconds ("2").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
