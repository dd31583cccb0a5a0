// Package config loads and validates the engine's environment-driven configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the complete process configuration, sourced from environment
// variables (with an optional local .env file for development).
type Config struct {
	SupabaseURL            string
	SupabaseServiceRoleKey string
	Port                   int

	SupervisorTickInterval time.Duration
	SupervisorErrorBackoff time.Duration
	ScannerInterval        time.Duration

	MarketDataTimeout      time.Duration
	CandleCallDelay        time.Duration
	OrderBookCallDelay     time.Duration
	MidPriceTTL            time.Duration
	CandleCacheTTL         time.Duration

	StrategyDefaultsPath string
	LogLevel             string
}

// Load reads configuration from the environment. If a ".env" file is
// present in the working directory it is loaded first (local development
// convenience); real deployments rely on the process environment only.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional; absence is not an error

	cfg := &Config{
		SupabaseURL:            os.Getenv("SUPABASE_URL"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		LogLevel:               strings.ToLower(envOr("LOG_LEVEL", "info")),
	}

	port, err := strconv.Atoi(envOr("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("parsing PORT: %w", err)
	}
	cfg.Port = port

	cfg.SupervisorTickInterval = envDuration("SUPERVISOR_TICK_INTERVAL", time.Second)
	cfg.SupervisorErrorBackoff = envDuration("SUPERVISOR_ERROR_BACKOFF", 5*time.Second)
	cfg.ScannerInterval = envDuration("SCANNER_INTERVAL", 30*time.Second)
	cfg.MarketDataTimeout = envDuration("MARKET_DATA_TIMEOUT", 5*time.Second)
	cfg.CandleCallDelay = envDuration("CANDLE_CALL_DELAY", 1500*time.Millisecond)
	cfg.OrderBookCallDelay = envDuration("ORDER_BOOK_CALL_DELAY", 1*time.Second)
	cfg.MidPriceTTL = envDuration("MID_PRICE_TTL", 2*time.Second)
	cfg.CandleCacheTTL = envDuration("CANDLE_CACHE_TTL", 60*time.Second)
	cfg.StrategyDefaultsPath = envOr("STRATEGY_DEFAULTS_PATH", "")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast when required credentials are missing, per the
// original platform's abort-on-import behavior.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SupabaseURL) == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if strings.TrimSpace(c.SupabaseServiceRoleKey) == "" {
		return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	return nil
}

// MaskedURL returns the Supabase URL truncated for safe startup logging.
func (c *Config) MaskedURL() string {
	if len(c.SupabaseURL) <= 30 {
		return c.SupabaseURL
	}
	return c.SupabaseURL[:30] + "..."
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
