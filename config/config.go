package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

const (
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

// Config holds the runtime settings of the ledger node.
type Config struct {
	StorageDir   string `env:"VOTING_STORAGE_DIR" envDefault:"data"`
	StoreBackend string `env:"VOTING_STORE_BACKEND" envDefault:"bolt"`
	PostgresDSN  string `env:"VOTING_POSTGRES_DSN"`
	Port         int    `env:"VOTING_PORT" envDefault:"8080"`
	// Difficulty is the number of leading zero bytes journal blocks must have.
	Difficulty      uint8         `env:"VOTING_DIFFICULTY" envDefault:"1"`
	QueueSize       int           `env:"VOTING_QUEUE_SIZE" envDefault:"1000"`
	Workers         int           `env:"VOTING_WORKERS" envDefault:"4"`
	LogLevel        string        `env:"VOTING_LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"VOTING_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendBolt:
		if c.StorageDir == "" {
			return fmt.Errorf("storage directory is required")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("VOTING_POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue size must be positive")
	}
	if c.Workers < 1 {
		return fmt.Errorf("worker count must be positive")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return nil
}

// NewLogger builds a console logger at the configured level.
func (c *Config) NewLogger() zerolog.Logger {
	return newLogger(os.Stderr, c.LogLevel)
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
