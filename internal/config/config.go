// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Database (optional, memory stores if not set)
	DatabaseURL string

	// Security
	AdminSecret   string
	BillingSecret string // guards the compute endpoint
	RateLimitRPM  int
	CORSOrigins   []string

	// Observability
	OTLPEndpoint string

	// Admin API
	AuditPageLimit int
}

const (
	DefaultPort           = "8080"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultRateLimitRPM   = 120
	DefaultAuditPageLimit = 200
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", DefaultPort),
		Env:            getEnv("ENV", DefaultEnv),
		LogLevel:       getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:      getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AdminSecret:    os.Getenv("ADMIN_SECRET"),
		BillingSecret:  os.Getenv("BILLING_SECRET"),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", DefaultRateLimitRPM),
		CORSOrigins:    splitList(os.Getenv("CORS_ORIGINS")),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		AuditPageLimit: getEnvInt("AUDIT_PAGE_LIMIT", DefaultAuditPageLimit),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return errors.New("LOG_FORMAT must be \"text\" or \"json\"")
	}
	if c.AuditPageLimit < 1 {
		return errors.New("AUDIT_PAGE_LIMIT must be positive")
	}
	if c.IsProduction() {
		if c.AdminSecret == "" {
			return errors.New("ADMIN_SECRET is required in production")
		}
		if c.BillingSecret == "" {
			return errors.New("BILLING_SECRET is required in production")
		}
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required in production")
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
