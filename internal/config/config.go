// Package config loads the service configuration from the environment
// and holds the presence constants shared by the chat components.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config is the runtime configuration of the chat backend.
type Config struct {
	Port             int           `env:"PORT,default=5000"`
	DBDriver         string        `env:"DB_DRIVER,default=postgres"`
	DatabaseURL      string        `env:"DATABASE_URL,required=true"`
	RedisURL         string        `env:"REDIS_URL"`
	JWTSecret        string        `env:"JWT_SECRET,required=true"`
	TokenTTL         time.Duration `env:"TOKEN_TTL,default=24h"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL,default=15s"`
	StaleThreshold   time.Duration `env:"STALE_THRESHOLD,default=10s"`
	SweepConcurrency int           `env:"SWEEP_CONCURRENCY,default=8"`
	ConnectRetry     time.Duration `env:"CONNECT_RETRY,default=2s"`
	LogLevel         string        `env:"LOG_LEVEL,default=info"`
}

// Load reads an optional .env file and then unmarshals the process
// environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file loaded", "err", err)
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the env tags cannot express.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config error: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DatabaseURL == "" || c.JWTSecret == "" {
		return fmt.Errorf("config error: DATABASE_URL and JWT_SECRET must not be empty")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("config error: SWEEP_INTERVAL must be positive")
	}
	if c.StaleThreshold <= 0 {
		return fmt.Errorf("config error: STALE_THRESHOLD must be positive")
	}
	if c.SweepConcurrency <= 0 {
		return fmt.Errorf("config error: SWEEP_CONCURRENCY must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// NewLogger builds the process logger for the given level name.
// Unknown names fall back to info.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
