// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

var databaseURLPattern = regexp.MustCompile(`^(postgres|postgresql)://\S+$`)

// Config is the complete runtime configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Cache     CacheConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `env:"HOST"`
	Port            int           `env:"PORT,default=3000"`
	AllowedOrigin   string        `env:"ALLOWED_ORIGIN"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS,default=false"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects and tunes the store.
type DatabaseConfig struct {
	Driver          string        `env:"STORE_DRIVER,default=postgres"`
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`
}

// AuthConfig configures access tokens and the session cookie.
type AuthConfig struct {
	TokenSecret        string `env:"ACCESS_TOKEN_SECRET"`
	TokenExpirationRaw string `env:"ACCESS_TOKEN_EXPIRATION,default=10d"`
	CookieSecure       bool   `env:"COOKIE_SECURE,default=true"`

	// TokenExpiration is parsed from TokenExpirationRaw by Validate.
	TokenExpiration time.Duration
}

// CacheConfig configures the catalog cache and token revocation list.
type CacheConfig struct {
	RedisURL   string        `env:"REDIS_URL"`
	CatalogTTL time.Duration `env:"CATALOG_CACHE_TTL,default=5m"`
}

// LoggingConfig configures logrus.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

// RateLimitConfig throttles the signup and login endpoints per client.
type RateLimitConfig struct {
	RequestsPerSecond int `env:"AUTH_RATE_LIMIT_RPS,default=5"`
	Burst             int `env:"AUTH_RATE_LIMIT_BURST,default=10"`
}

// Load reads an optional .env file from the working directory, then the
// process environment, and validates the result.
func Load() (*Config, error) {
	return LoadFromFile(".env")
}

// LoadFromFile is Load with an explicit dotenv path. A missing file is not an
// error; variables already present in the environment win.
func LoadFromFile(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	return FromEnv()
}

// FromEnv decodes and validates the process environment.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(field, reason string) {
		problems = append(problems, field+" - "+reason)
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case DriverPostgres:
		if !databaseURLPattern.MatchString(c.Database.URL) {
			add("DATABASE_URL", "Invalid DATABASE_URL format. Must be a valid database connection URL.")
		}
	case DriverMemory:
	default:
		add("STORE_DRIVER", fmt.Sprintf("unsupported driver %q", c.Database.Driver))
	}

	if strings.TrimSpace(c.Auth.TokenSecret) == "" {
		add("ACCESS_TOKEN_SECRET", "Required")
	}
	expiry, err := ParseExpiration(c.Auth.TokenExpirationRaw)
	if err != nil {
		add("ACCESS_TOKEN_EXPIRATION", err.Error())
	}
	c.Auth.TokenExpiration = expiry

	if strings.TrimSpace(c.Server.AllowedOrigin) == "" {
		add("ALLOWED_ORIGIN", "Required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("PORT", "must be between 1 and 65535")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		add("AUTH_RATE_LIMIT_RPS", "rate and burst must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("environment variables validation error: %s", strings.Join(problems, ", "))
	}
	return nil
}

// ParseExpiration accepts a Go duration ("36h") or a day count ("10d").
func ParseExpiration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("must not be empty")
	}
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid day count %q", raw)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", raw)
	}
	return d, nil
}
