package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Credential store backends
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds the application configuration
type Config struct {
	Environment   string     `env:"APP_ENV" envDefault:"production"`
	LogJSON       *bool      `env:"LOG_JSON"`
	ServerAddress string     `env:"SERVER_ADDRESS" envDefault:":8080"`
	CORS          CORSConfig `envPrefix:"CORS_"`
	API           APIConfig  `envPrefix:"API_"`
	Storage       StorageConfig
	Visitor       VisitorConfig
	Session       SessionConfig `envPrefix:"SESSION_"`
	OAuth         OAuthConfig   `envPrefix:"OAUTH_"`
	Payment       PaymentConfig
	Auth          AuthConfig
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000,http://localhost:8080"`
}

// APIConfig describes the remote identity/subscription service
type APIConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"http://localhost:4000"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"15s"`
	Breaker BreakerConfig `envPrefix:"BREAKER_"`
}

// BreakerConfig tunes the circuit breaker in front of the remote service
type BreakerConfig struct {
	Enabled      bool          `env:"ENABLED" envDefault:"true"`
	MinRequests  uint32        `env:"MIN_REQUESTS" envDefault:"5"`
	FailureRatio float64       `env:"FAILURE_RATIO" envDefault:"0.5"`
	OpenTimeout  time.Duration `env:"OPEN_TIMEOUT" envDefault:"30s"`
}

// StorageConfig selects where visitor credentials are persisted
type StorageConfig struct {
	Backend       string `env:"CREDENTIAL_STORE" envDefault:"sqlite"`
	DatabasePath  string `env:"DATABASE_PATH" envDefault:"./data/storrsec.db"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Retention drops visitor storage not written for this long; 0 keeps it forever
	Retention time.Duration `env:"CREDENTIAL_RETENTION" envDefault:"8760h"`
}

// VisitorConfig holds the signed visitor cookie settings
type VisitorConfig struct {
	Secret       string        `env:"VISITOR_SECRET" envDefault:"change-me-in-production-visitor-secret"`
	CookieName   string        `env:"VISITOR_COOKIE_NAME" envDefault:"storrsec_visitor"`
	CookieTTL    time.Duration `env:"VISITOR_COOKIE_TTL" envDefault:"8760h"`
	CookieDomain string        `env:"COOKIE_DOMAIN"`
	SecureCookie bool          `env:"SECURE_COOKIE" envDefault:"false"`
}

// SessionConfig controls in-memory session lifetime
type SessionConfig struct {
	IdleTTL       time.Duration `env:"IDLE_TTL" envDefault:"30m"`
	SweepSchedule string        `env:"SWEEP_SCHEDULE" envDefault:"@every 5m"`
}

// OAuthConfig points at an optional provider catalog override
type OAuthConfig struct {
	ProvidersFile string `env:"PROVIDERS_FILE"`
}

// PaymentConfig holds hosted checkout settings
type PaymentConfig struct {
	StripePublishableKey string `env:"STRIPE_PUBLISHABLE_KEY"`
}

// AuthConfig holds auth form settings
type AuthConfig struct {
	PasswordMinScore int     `env:"PASSWORD_MIN_SCORE" envDefault:"0"`
	RateLimitRPS     float64 `env:"AUTH_RATE_LIMIT_RPS" envDefault:"1"`
	RateLimitBurst   int     `env:"AUTH_RATE_LIMIT_BURST" envDefault:"5"`
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	cfg.CORS.AllowedOrigins = compact(cfg.CORS.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the tags cannot express
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.API.BaseURL)
	}

	switch c.Storage.Backend {
	case StoreSQLite, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("CREDENTIAL_STORE must be one of sqlite, redis, memory, got %q", c.Storage.Backend)
	}

	if c.Storage.Retention < 0 {
		return errors.New("CREDENTIAL_RETENTION must not be negative")
	}

	if c.Visitor.Secret == "" {
		return errors.New("VISITOR_SECRET is required")
	}
	if c.Auth.PasswordMinScore < 0 || c.Auth.PasswordMinScore > 4 {
		return fmt.Errorf("PASSWORD_MIN_SCORE must be between 0 and 4, got %d", c.Auth.PasswordMinScore)
	}
	if c.Session.IdleTTL <= 0 {
		return errors.New("SESSION_IDLE_TTL must be positive")
	}
	return nil
}

// JSONLogs reports whether logs should be emitted as JSON. LOG_JSON wins;
// otherwise JSON everywhere except development.
func (c *Config) JSONLogs() bool {
	if c.LogJSON != nil {
		return *c.LogJSON
	}
	return c.Environment != "development"
}

// IsProduction reports whether the app runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// compact trims entries and drops empty ones
func compact(items []string) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
