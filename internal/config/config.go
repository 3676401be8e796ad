package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	// Web server
	Bind string

	// Database; empty selects the in-memory bill store
	DatabaseURL string

	// Routing service
	RouterAPIURL string
	RouterAPIKey string

	// Destination asset the merchant receives
	DestDenom   string
	DestChainID string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Bind:         getEnvDefault("BIND", "0.0.0.0:3000"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RouterAPIURL: getEnvDefault("SKIP_API_URL", "https://api.skip.money"),
		RouterAPIKey: os.Getenv("SKIP_API_KEY"),
		DestDenom:    getEnvDefault("DEST_DENOM", "uusdc"),
		DestChainID:  getEnvDefault("DEST_CHAIN_ID", "noble-1"),
		LogLevel:     getEnvDefault("LOG_LEVEL", "info"),
		LogFormat:    getEnvDefault("LOG_FORMAT", "console"),
	}
	return cfg, nil
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
