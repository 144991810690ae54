package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultSolveTimeout = 10 * time.Second
	DefaultMaxExact     = 20
	// The exact solver keeps 9 bytes for each of 2^n states: 22 is about 38 MB
	// per solve, and solves run concurrently.
	maxExactLimit = 22
)

type Config struct {
	// Discord Bot
	DiscordToken string

	// Discord OAuth2
	DiscordClientID     string
	DiscordClientSecret string
	DiscordRedirectURI  string

	// Database (optional settlement history)
	DatabaseURL string

	// Web Server
	WebBind      string
	WebUIBaseURL string

	// Session
	JWTSecret string

	// Solver
	SolveTimeout   time.Duration
	MaxExact       int
	CurrencySymbol string

	// Logging
	Environment string
	LogLevel    string
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:        os.Getenv("DISCORD_TOKEN"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		WebBind:             getEnvDefault("WEB_BIND", "0.0.0.0:3000"),
		DiscordClientID:     os.Getenv("DISCORD_CLIENT_ID"),
		DiscordClientSecret: os.Getenv("DISCORD_CLIENT_SECRET"),
		DiscordRedirectURI:  getEnvDefault("DISCORD_REDIRECT_URI", "http://localhost:3000/api/auth/callback"),
		JWTSecret:           getEnvDefault("JWT_SECRET", "dev-only-change-me"),
		CurrencySymbol:      getEnvDefault("CURRENCY_SYMBOL", "$"),
		Environment:         getEnvDefault("APP_ENV", "production"),
		LogLevel:            os.Getenv("LOG_LEVEL"),
	}

	// Extract base URL from redirect URI
	cfg.WebUIBaseURL = extractBaseURL(cfg.DiscordRedirectURI)

	timeout, err := getEnvDuration("SOLVE_TIMEOUT", DefaultSolveTimeout)
	if err != nil {
		return nil, err
	}
	if timeout < 0 {
		return nil, fmt.Errorf("SOLVE_TIMEOUT must not be negative")
	}
	cfg.SolveTimeout = timeout

	maxExact, err := getEnvInt("MAX_EXACT_PARTICIPANTS", DefaultMaxExact)
	if err != nil {
		return nil, err
	}
	if maxExact < 1 || maxExact > maxExactLimit {
		return nil, fmt.Errorf("MAX_EXACT_PARTICIPANTS must be between 1 and %d", maxExactLimit)
	}
	cfg.MaxExact = maxExact

	return cfg, nil
}

// ValidateBot checks the settings the Discord bot cannot run without.
func (c *Config) ValidateBot() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	return nil
}

// AuthEnabled reports whether Discord login can be offered on the web API.
func (c *Config) AuthEnabled() bool {
	return c.DiscordClientID != "" && c.DiscordClientSecret != ""
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func extractBaseURL(redirectURI string) string {
	// e.g., "http://localhost:3000/api/auth/callback" -> "http://localhost:3000"
	parsed, err := url.Parse(redirectURI)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "http://localhost:3000"
	}

	return fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
}
