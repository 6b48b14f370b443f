// Package config reads server settings from the environment, after loading
// any local .env files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/mutation"
)

// Storage drivers accepted in DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds everything cmd/server needs to start.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration

	DBDriver    string
	DBPath      string
	DatabaseURL string

	JWTSecret string
	LogLevel  string

	// RedisAddr enables the Redis event publisher when set.
	RedisAddr    string
	RedisChannel string

	Retry     mutation.RetryPolicy
	MaxAmount decimal.Decimal

	CORSOrigins []string
}

// LoadEnv loads the given env files (".env" and ".env.local" by default)
// into the process environment. Later files override earlier ones. Missing
// files are skipped. It returns the files that were loaded.
func LoadEnv(files ...string) []string {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			slog.Warn("Failed to load env file", "file", file, "error", err)
			continue
		}
		loaded = append(loaded, file)
	}
	if len(loaded) == 0 {
		slog.Debug("No local env files loaded; relying on process environment")
	} else {
		slog.Debug("Loaded env files", "files", strings.Join(loaded, ", "))
	}
	return loaded
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	retry := mutation.DefaultRetryPolicy()
	retry.MaxAttempts = GetEnvInt("RETRY_MAX_ATTEMPTS", retry.MaxAttempts)
	retry.BaseDelay = GetEnvDuration("RETRY_BASE_DELAY", retry.BaseDelay)
	retry.MaxDelay = GetEnvDuration("RETRY_MAX_DELAY", retry.MaxDelay)
	retry.Jitter = GetEnvFloat("RETRY_JITTER", retry.Jitter)

	maxAmount := ledger.DefaultConfig().MaxAmount
	if v := os.Getenv("MAX_AMOUNT"); v != "" {
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_AMOUNT %q: %w", v, err)
		}
		maxAmount = parsed
	}

	cfg := &Config{
		Port:            GetEnvInt("PORT", 8080),
		ShutdownTimeout: GetEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		DBDriver:        strings.ToLower(GetEnv("DB_DRIVER", DriverSQLite)),
		DBPath:          GetEnv("DB_PATH", "./data/ledger.db"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		LogLevel:        GetEnv("LOG_LEVEL", "info"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisChannel:    os.Getenv("REDIS_CHANNEL"),
		Retry:           retry,
		MaxAmount:       maxAmount,
		CORSOrigins:     splitList(GetEnv("CORS_ORIGINS", "*")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q (want sqlite, postgres or memory)", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter >= 1 {
		return fmt.Errorf("RETRY_JITTER must be in [0, 1), got %g", c.Retry.Jitter)
	}
	if !c.MaxAmount.IsPositive() {
		return fmt.Errorf("MAX_AMOUNT must be positive, got %s", c.MaxAmount)
	}
	return nil
}

// Ledger returns the ledger service settings.
func (c *Config) Ledger() ledger.Config {
	return ledger.Config{MaxAmount: c.MaxAmount, Retry: c.Retry}
}

// GetEnv gets an environment variable with a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an integer environment variable with a default value
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		slog.Warn("Ignoring malformed integer", "key", key, "value", value)
	}
	return defaultValue
}

// GetEnvBool gets a boolean environment variable with a default value
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
		slog.Warn("Ignoring malformed boolean", "key", key, "value", value)
	}
	return defaultValue
}

// GetEnvFloat gets a float environment variable with a default value
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
		slog.Warn("Ignoring malformed number", "key", key, "value", value)
	}
	return defaultValue
}

// GetEnvDuration gets a duration environment variable (e.g. "250ms") with a
// default value
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		slog.Warn("Ignoring malformed duration", "key", key, "value", value)
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
