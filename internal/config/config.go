// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/whisperbridge/internal/domain"
	"github.com/ashureev/whisperbridge/internal/store"
)

// ErrMissingStoreCredentials is returned when the store URL or key is unset.
var ErrMissingStoreCredentials = errors.New("store URL and key are required")

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string

	Store     StoreConfig
	RateLimit RateLimitConfig

	CatalogTTL         time.Duration
	ResponderDelay     time.Duration
	SessionTTL         time.Duration
	HealthCheckTimeout time.Duration
	Providers          []string
	ExitURL            string
}

// StoreConfig selects and tunes the data store backend.
type StoreConfig struct {
	URL              string
	Key              string
	Timeout          time.Duration
	AtomicIncrement  bool
	SubmissionsTable string
	SeedPath         string
}

// RateLimitConfig bounds sends per device.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		Store: StoreConfig{
			URL:              getEnvAny([]string{"STORE_URL", "SUPABASE_URL"}, ""),
			Key:              getEnvAny([]string{"STORE_KEY", "SUPABASE_KEY"}, ""),
			Timeout:          getEnvDuration("STORE_TIMEOUT", 10*time.Second),
			AtomicIncrement:  getEnvBool("STORE_ATOMIC_INCREMENT", false),
			SubmissionsTable: getEnv("SUBMISSIONS_TABLE", store.SubmissionsTable),
			SeedPath:         getEnv("SEED_PATH", ""),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		CatalogTTL:         getEnvDuration("CATALOG_TTL", 10*time.Minute),
		ResponderDelay:     getEnvDuration("RESPONDER_DELAY", 20*time.Second),
		SessionTTL:         getEnvDuration("SESSION_TTL", 60*time.Minute),
		HealthCheckTimeout: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
		Providers:          getEnvList("PROVIDERS", domain.DefaultProviders()),
		ExitURL:            getEnv("EXIT_URL", domain.DefaultExitURL),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Store.URL == "" || c.Store.Key == "" {
		return ErrMissingStoreCredentials
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Store.SubmissionsTable == "" {
		return fmt.Errorf("SUBMISSIONS_TABLE cannot be empty")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("PROVIDERS must name at least one provider")
	}
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ResponderDelay < 0 {
		return fmt.Errorf("RESPONDER_DELAY cannot be negative")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the origins CORS should accept.
func (c *Config) AllowedOrigins() []string {
	origins := []string{"http://localhost:5173", "http://localhost:" + c.Port}
	if c.FrontendURL != "" {
		origins = append(origins, c.FrontendURL)
	}
	return origins
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAny(keys []string, fallback string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && value != "" {
			return value
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
