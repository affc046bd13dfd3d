// Package config loads the process configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration. Nested sections share an
// environment prefix; variable names are listed on each field.
type Config struct {
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`

	// BaseURL is the public origin that lookup links point at.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"json"`

	HTTP      HTTP
	Auth      Auth
	PetCodes  PetCodes  `envPrefix:"PET_CODE_"`
	Contacts  Contacts  `envPrefix:"CONTACT_"`
	Images    Images    `envPrefix:"IMGBB_"`
	RateLimit RateLimit `envPrefix:"RATE_LIMIT_"`
	Sessions  Sessions  `envPrefix:"LOOKUP_SESSION_"`
	Scan      Scan      `envPrefix:"SCAN_WORKER_"`
}

type HTTP struct {
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// CORSAllowedOrigins is comma separated; "*.host" allows subdomains.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// MaxRequestBodySize leaves room for a pet photo upload.
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"6291456"`
}

type Auth struct {
	JWTSecret string        `env:"JWT_SECRET,required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
}

// PetCodes: PET_CODE_PREFIX, PET_CODE_MAX_ATTEMPTS.
type PetCodes struct {
	Prefix      string `env:"PREFIX" envDefault:"PET"`
	MaxAttempts int    `env:"MAX_ATTEMPTS" envDefault:"50"`
}

// Contacts: CONTACT_COUNTRY_CODE, CONTACT_CACHE_SIZE, CONTACT_CACHE_TTL.
type Contacts struct {
	// CountryCode is prepended to local numbers in WhatsApp links.
	CountryCode string        `env:"COUNTRY_CODE" envDefault:"55"`
	CacheSize   int           `env:"CACHE_SIZE" envDefault:"1024"`
	CacheTTL    time.Duration `env:"CACHE_TTL" envDefault:"1m"`
}

// Images: IMGBB_API_KEY, IMGBB_UPLOAD_URL. Uploads are off without a key.
type Images struct {
	APIKey    string `env:"API_KEY"`
	UploadURL string `env:"UPLOAD_URL" envDefault:"https://api.imgbb.com/1/upload"`
}

// Enabled reports whether photo uploads can be forwarded.
func (i Images) Enabled() bool { return i.APIKey != "" }

// RateLimit: RATE_LIMIT_LOOKUP_* per IP per second, RATE_LIMIT_LOGIN_* per
// IP per minute. A zero login rate disables the sign-in limit.
type RateLimit struct {
	LookupEnabled  bool `env:"LOOKUP_ENABLED" envDefault:"true"`
	LookupRPS      int  `env:"LOOKUP_RPS" envDefault:"20"`
	LookupBurst    int  `env:"LOOKUP_BURST" envDefault:"10"`
	LoginPerMinute int  `env:"LOGIN_PER_MINUTE" envDefault:"10"`
	LoginBurst     int  `env:"LOGIN_BURST" envDefault:"5"`
}

// Sessions: LOOKUP_SESSION_MAX, LOOKUP_SESSION_TTL.
type Sessions struct {
	Max int           `env:"MAX" envDefault:"10000"`
	TTL time.Duration `env:"TTL" envDefault:"10m"`
}

// Scan: SCAN_WORKER_ENABLED, SCAN_WORKER_BATCH_SIZE, SCAN_WORKER_BLOCK.
type Scan struct {
	Enabled   bool          `env:"ENABLED" envDefault:"true"`
	BatchSize int           `env:"BATCH_SIZE" envDefault:"200"`
	Block     time.Duration `env:"BLOCK" envDefault:"5s"`
}

func (c *Config) IsDevelopment() bool { return c.AppEnv == "development" }

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

// Validate checks values that env tags cannot express. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error
	check := func(bad bool, msg string) {
		if bad {
			errs = append(errs, errors.New(msg))
		}
	}

	check(c.LogFormat != "json" && c.LogFormat != "text", "LOG_FORMAT must be json or text")
	check(strings.TrimSpace(c.PetCodes.Prefix) == "", "PET_CODE_PREFIX must not be empty")
	check(c.PetCodes.MaxAttempts < 1, "PET_CODE_MAX_ATTEMPTS must be at least 1")
	check(len(c.Auth.JWTSecret) < 16, "JWT_SECRET must be at least 16 characters")
	check(c.Auth.TokenTTL <= 0, "TOKEN_TTL must be positive")

	rl := c.RateLimit
	check(rl.LookupEnabled && (rl.LookupRPS < 1 || rl.LookupBurst < 1),
		"RATE_LIMIT_LOOKUP_RPS and RATE_LIMIT_LOOKUP_BURST must be positive")
	check(rl.LoginPerMinute < 0, "RATE_LIMIT_LOGIN_PER_MINUTE must not be negative")
	check(rl.LoginPerMinute > 0 && rl.LoginBurst < 1,
		"RATE_LIMIT_LOGIN_BURST must be positive when login limiting is on")

	check(c.Sessions.Max < 1 || c.Sessions.TTL <= 0,
		"LOOKUP_SESSION_MAX and LOOKUP_SESSION_TTL must be positive")
	check(c.Contacts.CacheSize < 0, "CONTACT_CACHE_SIZE must not be negative")
	check(c.Scan.BatchSize < 1, "SCAN_WORKER_BATCH_SIZE must be at least 1")

	return errors.Join(errs...)
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
