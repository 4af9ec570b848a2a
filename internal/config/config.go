package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/ctf.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// Empty disables Redis: snapshots stay in-process and submissions are
	// not rate limited.
	RedisURL     string `env:"REDIS_URL"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"ctf:snapshots"`

	HashAlgo   string `env:"HASH_ALGO" envDefault:"bcrypt"`
	BcryptCost int    `env:"BCRYPT_COST" envDefault:"10"`

	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"admin@ctf.local"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	SubmitPerMinute   int  `env:"SUBMIT_PER_MINUTE" envDefault:"10"`
	RateLimitFailOpen bool `env:"RATE_LIMIT_FAIL_OPEN" envDefault:"true"`

	TokenDigits int           `env:"TOKEN_DIGITS" envDefault:"8"`
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"12h"`

	// Built frontend served for unmatched paths; empty serves none.
	StaticDir string `env:"STATIC_DIR"`

	// Origin patterns accepted on the proctoring WebSocket.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.HashAlgo != "bcrypt" && cfg.HashAlgo != "argon2id" {
		return nil, fmt.Errorf("HASH_ALGO must be bcrypt or argon2id, got %q", cfg.HashAlgo)
	}
	if cfg.TokenDigits < 6 || cfg.TokenDigits > 12 {
		return nil, fmt.Errorf("TOKEN_DIGITS must be between 6 and 12, got %d", cfg.TokenDigits)
	}
	return &cfg, nil
}
