package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Serpstat API
	APIKey     string
	BaseURL    string
	Timeout    time.Duration // per attempt
	MaxRetries int
	RetryDelay time.Duration

	// Rate limiting
	RatePerSecond float64
	RateBurst     int
	MaxConcurrent int

	// HTTP server
	HTTPPort   string
	HTTPAPIKey string

	LogLevel string
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "https://api.serpstat.com/v4",
		Timeout:       120 * time.Second,
		MaxRetries:    3,
		RetryDelay:    time.Second,
		RatePerSecond: 10,
		RateBurst:     10,
		MaxConcurrent: 5,
		HTTPPort:      "8080",
		LogLevel:      "info",
	}
}

// LoadFromEnv loads .env file (if present) then overrides config from
// environment variables. Malformed values are reported together; the
// remaining variables are still applied.
func (c *Config) LoadFromEnv() error {
	// Auto-load .env file; silently ignored if missing
	_ = godotenv.Load()

	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("SERPSTAT_API_KEY", &c.APIKey)
	str("SERPSTAT_BASE_URL", &c.BaseURL)
	duration("SERPSTAT_TIMEOUT", &c.Timeout)
	integer("SERPSTAT_MAX_RETRIES", &c.MaxRetries)
	duration("SERPSTAT_RETRY_DELAY", &c.RetryDelay)
	float("SERPSTAT_RATE_PER_SECOND", &c.RatePerSecond)
	integer("SERPSTAT_RATE_BURST", &c.RateBurst)
	integer("SERPSTAT_MAX_CONCURRENT", &c.MaxConcurrent)
	str("SERPSTAT_LOG_LEVEL", &c.LogLevel)
	str("PORT", &c.HTTPPort)
	str("SERPSTAT_MCP_API_KEY", &c.HTTPAPIKey)

	return errors.Join(errs...)
}

// ParseDuration accepts Go durations ("90s") and bare integers, which are
// read as milliseconds.
func ParseDuration(s string) (time.Duration, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

// Validate checks the settings that would otherwise fail at request time.
// The API key is not required here so that commands like "tools" work
// without one.
func (c *Config) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("retry delay must not be negative, got %s", c.RetryDelay))
	}
	if c.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("rate per second must not be negative, got %v", c.RatePerSecond))
	}
	if c.RateBurst < 0 {
		errs = append(errs, fmt.Errorf("rate burst must not be negative, got %d", c.RateBurst))
	}
	if c.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("max concurrent must not be negative, got %d", c.MaxConcurrent))
	}
	return errors.Join(errs...)
}
