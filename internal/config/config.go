package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Source   SourceConfig
	Cache    CacheConfig
	Confirm  ConfirmConfig
	Sync     SyncConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// SourceConfig describes the upstream sheet export.
type SourceConfig struct {
	SheetURL          string
	ExcludedTransport string
	Timezone          string
}

// CacheConfig controls dataset cache freshness.
type CacheConfig struct {
	TTLSeconds int
}

// ConfirmConfig controls confirmation windows per action kind. A window of
// zero means the pending action waits for an explicit confirm or cancel.
type ConfirmConfig struct {
	RefreshWindowSeconds int
	ImportWindowSeconds  int
}

// SyncConfig controls the daily global sync job.
type SyncConfig struct {
	Enabled bool
	Hour    int
	Minute  int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-ingest"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Source: SourceConfig{
			SheetURL:          os.Getenv("SOURCE_SHEET_URL"),
			ExcludedTransport: getEnv("SOURCE_EXCLUDED_TRANSPORT", "FO TSEL"),
			Timezone:          getEnv("PROCESS_TIMEZONE", "Asia/Jakarta"),
		},
		Cache: CacheConfig{
			TTLSeconds: getEnvAsInt("CACHE_TTL_SECONDS", 300),
		},
		Confirm: ConfirmConfig{
			RefreshWindowSeconds: getEnvAsInt("CONFIRM_REFRESH_WINDOW_SECONDS", 5),
			ImportWindowSeconds:  getEnvAsInt("CONFIRM_IMPORT_WINDOW_SECONDS", 0),
		},
		Sync: SyncConfig{
			Enabled: getEnvAsBool("SYNC_DAILY_ENABLED", true),
			Hour:    getEnvAsInt("SYNC_HOUR", 8),
			Minute:  getEnvAsInt("SYNC_MINUTE", 0),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TTL returns the cache time-to-live duration.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

// RefreshWindow returns the refresh confirmation window.
func (c ConfirmConfig) RefreshWindow() time.Duration {
	if c.RefreshWindowSeconds <= 0 {
		return 0
	}
	return time.Duration(c.RefreshWindowSeconds) * time.Second
}

// ImportWindow returns the import confirmation window.
func (c ConfirmConfig) ImportWindow() time.Duration {
	if c.ImportWindowSeconds <= 0 {
		return 0
	}
	return time.Duration(c.ImportWindowSeconds) * time.Second
}

// Location resolves the processing timezone, falling back to UTC.
func (s SourceConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
