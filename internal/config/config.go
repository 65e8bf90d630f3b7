// Package config loads the environment-provided configuration consumed by
// the access-control core. All variables carry the ENGRAMA_ prefix,
// matching the deployment contract of the wider memory service.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Environment markers recognized by Validate.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

// ErrAdminTokenRequired indicates a non-development deployment without a
// configured admin token. The process must refuse to start rather than
// fall back to unauthenticated admin access.
var ErrAdminTokenRequired = errors.New("ENGRAMA_ADMIN_TOKEN must be set outside development")

// Config holds all configuration for the access-control core.
type Config struct {
	// Environment is the deployment posture marker, also consumed by the
	// destructive-operation safety gate.
	Environment string `env:"ENGRAMA_ENV" envDefault:"production"`

	// ListenAddr is the HTTP listen address.
	ListenAddr string `env:"ENGRAMA_LISTEN_ADDR" envDefault:":8080"`

	// AdminToken authenticates channel-management requests. Empty means
	// admin APIs are denied entirely; Validate rejects that outside
	// development.
	AdminToken string `env:"ENGRAMA_ADMIN_TOKEN"`

	// PostgresURI selects the PostgreSQL credential store; empty falls
	// back to the in-memory store (development only).
	PostgresURI string `env:"ENGRAMA_PG_URI"`

	// RedisURL selects the distributed rate limiter; empty uses the
	// in-process limiter.
	RedisURL string `env:"ENGRAMA_REDIS_URL"`

	// RateLimit is the maximum requests per identity per window. Zero
	// means unlimited.
	RateLimit int `env:"ENGRAMA_RATE_LIMIT" envDefault:"0"`

	// RateLimitWindow is the trailing window the limit applies to.
	RateLimitWindow time.Duration `env:"ENGRAMA_RATE_LIMIT_WINDOW" envDefault:"1m"`

	// RateLimitAlgorithm selects sliding_window or token_bucket.
	RateLimitAlgorithm string `env:"ENGRAMA_RATE_LIMIT_ALGORITHM" envDefault:"sliding_window"`

	// KeyHashAlgorithm selects the credential digest algorithm.
	KeyHashAlgorithm string `env:"ENGRAMA_KEY_HASH_ALGORITHM" envDefault:"sha256"`

	// StorePoolSize bounds concurrent credential store calls.
	StorePoolSize int `env:"ENGRAMA_STORE_POOL_SIZE" envDefault:"16"`

	// LogLevel sets the zap log level.
	LogLevel string `env:"ENGRAMA_LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from the environment. A .env file is optional
// and only used for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the startup posture. An unset admin token is only
// acceptable in an explicit development or test environment; production
// denies admin access when unset, and refuses to start at all so the gap
// is visible immediately rather than at the first admin request.
func (c *Config) Validate() error {
	if c.AdminToken == "" && c.Environment != EnvDevelopment && c.Environment != EnvTest {
		return ErrAdminTokenRequired
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("ENGRAMA_RATE_LIMIT must not be negative, got %d", c.RateLimit)
	}
	if c.RateLimit > 0 && c.RateLimitWindow <= 0 {
		return fmt.Errorf("ENGRAMA_RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}
	return nil
}
