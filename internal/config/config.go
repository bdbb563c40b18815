// Package config loads the server configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// hashSaltSecretPath is checked before the environment variable so container
// secrets win over ambient env.
const hashSaltSecretPath = "/run/secrets/HASH_SALT"

const developmentHashSalt = "colorpulse-development-salt"

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	AllowedOrigin string `env:"ALLOWED_ORIGIN" default:"http://localhost:5173"`
	HashSalt      string `env:"HASH_SALT"`

	MaxConnectionsPerIP  int           `env:"MAX_CONNECTIONS_PER_IP" default:"5"`
	ConnectionsPerSecond float64       `env:"CONNECTIONS_PER_SECOND" default:"10"`
	ConnectionBurst      int           `env:"CONNECTION_BURST" default:"10"`
	IdleTimeout          time.Duration `env:"IDLE_TIMEOUT" default:"5m"`
	MessageMinInterval   time.Duration `env:"MESSAGE_MIN_INTERVAL" default:"100ms"`
	BroadcastBuffer      int           `env:"BROADCAST_BUFFER" default:"64"`

	StatePath        string        `env:"STATE_PATH" default:"saved_state.json"`
	RedisURL         string        `env:"REDIS_URL"`
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" default:"1m"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if salt, err := readSecretFile(hashSaltSecretPath); err == nil {
		cfg.HashSalt = salt
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.HashSalt == "" {
		if cfg.AppEnv == "production" {
			return fmt.Errorf("HASH_SALT is required in production")
		}
		slog.Warn("HASH_SALT not set, using development default")
		cfg.HashSalt = developmentHashSalt
	}
	if cfg.AllowedOrigin == "" {
		return fmt.Errorf("ALLOWED_ORIGIN must not be empty")
	}
	if cfg.MaxConnectionsPerIP < 1 {
		return fmt.Errorf("MAX_CONNECTIONS_PER_IP must be at least 1, got %d", cfg.MaxConnectionsPerIP)
	}
	if cfg.IdleTimeout <= 0 {
		return fmt.Errorf("IDLE_TIMEOUT must be positive, got %s", cfg.IdleTimeout)
	}
	if cfg.MessageMinInterval < 0 {
		return fmt.Errorf("MESSAGE_MIN_INTERVAL must not be negative, got %s", cfg.MessageMinInterval)
	}
	if cfg.BroadcastBuffer < 1 {
		return fmt.Errorf("BROADCAST_BUFFER must be at least 1, got %d", cfg.BroadcastBuffer)
	}
	if cfg.SnapshotInterval <= 0 {
		return fmt.Errorf("SNAPSHOT_INTERVAL must be positive, got %s", cfg.SnapshotInterval)
	}
	return nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	salt := strings.TrimSpace(string(data))
	if salt == "" {
		return "", fmt.Errorf("secret file %s is empty", path)
	}
	return salt, nil
}
