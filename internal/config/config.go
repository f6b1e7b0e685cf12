// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port      int           `env:"PORT,default=5050"`
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=24h"`

	StoreDriver string `env:"STORE_DRIVER,default=memory"`
	SurrealURL  string `env:"SURREAL_URL"`
	SurrealNS   string `env:"SURREAL_NS,default=chatter"`
	SurrealDB   string `env:"SURREAL_DB,default=chatter"`
	SurrealUser string `env:"SURREAL_USER"`
	SurrealPass string `env:"SURREAL_PASS"`
	BadgerPath  string `env:"BADGER_PATH,default=data/badger"`
	SQLDSN      string `env:"SQL_DSN,default=chatter.db"`

	RedisURL string `env:"REDIS_URL"`

	RoomBacklogLimit int     `env:"ROOM_BACKLOG_LIMIT,default=100"`
	HistoryLimit     int     `env:"HISTORY_LIMIT,default=100"`
	SendBuffer       int     `env:"SEND_BUFFER,default=256"`
	EventsPerSecond  float64 `env:"EVENTS_PER_SECOND,default=20"`
	EventBurst       int     `env:"EVENT_BURST,default=40"`
	HTTPRateLimit    float64 `env:"HTTP_RATE_LIMIT,default=10"`
	AllowedOrigins   string  `env:"ALLOWED_ORIGINS"`

	LogFormat string `env:"LOG_FORMAT,default=text"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`

	TracingEnabled     bool   `env:"PUBSUB_TRACING_ENABLED,default=false"`
	TracingServiceName string `env:"PUBSUB_TRACING_SERVICE_NAME,default=chatter"`
	TracingZipkinURL   string `env:"PUBSUB_TRACING_ZIPKIN_URL,default=http://localhost:9411/api/v2/spans"`

	MetricsEnabled bool `env:"METRICS_ENABLED,default=true"`
}

// New loads a .env file when present, then reads the environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}
	return FromEnviron()
}

// FromEnviron reads the process environment without touching .env files.
func FromEnviron() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.StoreDriver == "surreal" && c.SurrealURL == "" {
		errs = append(errs, errors.New("SURREAL_URL is required for the surreal store"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("SEND_BUFFER must be positive: %d", c.SendBuffer))
	}
	return errors.Join(errs...)
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
