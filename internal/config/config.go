// Package config handles loading and validation of application configuration
// from environment variables. Supports .env files via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSubmitTimeout bounds a single complaint submission.
const DefaultSubmitTimeout = 120 * time.Second

// DefaultFetchTimeout bounds list and analytics fetches.
const DefaultFetchTimeout = 30 * time.Second

// Config holds all application configuration
type Config struct {
	// Console server settings
	Port        int
	Environment string // "development" | "staging" | "production"

	// Remote classification gateway
	GatewayURL      string
	SubmitTimeout   time.Duration
	FetchTimeout    time.Duration
	RefreshInterval time.Duration // 0 disables periodic refresh

	// Security
	JWTSecret      string
	AllowedOrigins []string
	RateLimitRPM   int

	// Redis (cross-instance refresh signal); empty uses the in-memory bus
	RedisURL       string
	RefreshChannel string

	// Submission journal; empty disables it
	DatabaseURL string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Environment: getEnv("ENVIRONMENT", "development"),

		GatewayURL:      strings.TrimRight(getEnv("GATEWAY_URL", "http://localhost:8000"), "/"),
		SubmitTimeout:   getEnvDuration("SUBMIT_TIMEOUT", DefaultSubmitTimeout),
		FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", DefaultFetchTimeout),
		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 0),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", 120),

		RedisURL:       getEnv("REDIS_URL", ""),
		RefreshChannel: getEnv("REFRESH_CHANNEL", "complaints.changed"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that hold in every environment and the stricter
// requirements of production.
func (c *Config) Validate() error {
	if c.SubmitTimeout <= 0 {
		return fmt.Errorf("SUBMIT_TIMEOUT must be positive, got %s", c.SubmitTimeout)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("REFRESH_INTERVAL must not be negative, got %s", c.RefreshInterval)
	}

	if c.Environment == "production" {
		if os.Getenv("GATEWAY_URL") == "" {
			return fmt.Errorf("GATEWAY_URL is required in production")
		}
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
