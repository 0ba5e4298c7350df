// Package config loads runtime settings from the environment. A .env file
// in the working directory is read first when present; real environment
// variables always win over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/aurashift/internal/auth"
)

// Store drivers.
const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
)

// devJWTSecret is only accepted outside production.
const devJWTSecret = "aurashift-dev-secret-change-me"

type Config struct {
	Port        int
	Environment string

	StoreDriver     string
	DBPath          string
	MongoURI        string
	MongoDatabase   string
	JWTSecret       string
	JWTExpiresIn    time.Duration
	BcryptRounds    int
	CORSOrigins     []string
	RateLimit       int
	RateLimitWindow time.Duration
	RedisAddr       string
	// TrustProxy honours X-Forwarded-For and X-Real-IP. Only enable behind
	// a proxy that overwrites them, or clients can pick their own IP.
	TrustProxy      bool

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	LogLevel  slog.Level
	LogFormat string
}

// Load reads .env (if any) and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Split from Load so tests can pass a
// map instead of mutating the process environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		Port:               p.int("PORT", 3000),
		Environment:        p.str("APP_ENV", p.str("NODE_ENV", "development")),
		StoreDriver:        strings.ToLower(p.str("STORE_DRIVER", StoreSQLite)),
		DBPath:             p.str("DB_PATH", filepath.Join("data", "aurashift.db")),
		MongoURI:           p.str("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:      p.str("MONGODB_DATABASE", "aurashift"),
		JWTSecret:          getenv("JWT_SECRET"),
		JWTExpiresIn:       p.duration("JWT_EXPIRES_IN", auth.DefaultTokenTTL),
		BcryptRounds:       p.int("BCRYPT_ROUNDS", auth.DefaultCost),
		CORSOrigins:        p.list("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:8081", "http://localhost:19006"}),
		RateLimit:          p.int("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:    p.duration("RATE_LIMIT_WINDOW", 15*time.Minute),
		RedisAddr:          getenv("REDIS_ADDR"),
		TrustProxy:         p.bool("TRUST_PROXY", false),
		GitHubClientID:     getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: getenv("GITHUB_CLIENT_SECRET"),
		LogFormat:          strings.ToLower(p.str("LOG_FORMAT", "text")),
	}
	cfg.GitHubCallbackURL = p.str("GITHUB_CALLBACK_URL",
		fmt.Sprintf("http://localhost:%d/api/auth/github/callback", cfg.Port))

	if raw := getenv("LOG_LEVEL"); raw != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(raw)); err != nil {
			p.fail("LOG_LEVEL", raw, err)
		}
	}

	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

func (c *Config) validate() error {
	switch {
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	case c.StoreDriver != StoreSQLite && c.StoreDriver != StoreMongo:
		return fmt.Errorf("config: STORE_DRIVER must be %q or %q, got %q", StoreSQLite, StoreMongo, c.StoreDriver)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", c.LogFormat)
	case c.RateLimit < 1 || c.RateLimitWindow <= 0:
		return errors.New("config: RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	case c.JWTExpiresIn <= 0:
		return errors.New("config: JWT_EXPIRES_IN must be positive")
	}

	if c.JWTSecret == "" {
		if c.IsProduction() {
			return errors.New("config: JWT_SECRET is required in production")
		}
		c.JWTSecret = devJWTSecret
	}
	return nil
}

// parser collects every malformed value so one run reports them all.
type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) fail(key, raw string, err error) {
	p.errs = append(p.errs, fmt.Errorf("config: invalid %s %q: %w", key, raw, err))
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) int(key string, def int) int {
	raw := p.getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return n
}

func (p *parser) bool(key string, def bool) bool {
	raw := p.getenv(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return b
}

// duration accepts Go durations ("90m") and whole days ("7d").
func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			p.fail(key, raw, err)
			return def
		}
		return time.Duration(n) * 24 * time.Hour
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return d
}

func (p *parser) list(key string, def []string) []string {
	raw := p.getenv(key)
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
