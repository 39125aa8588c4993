// Package config loads the server configuration from the environment,
// with an optional .env file for development.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds the server configuration.
type Config struct {
	// Bind is the address the HTTP server listens on.
	Bind string

	// DBPath is the SQLite database file path.
	DBPath string

	// BaseURL is the public URL share links are built against.
	BaseURL string

	// ShortenerURL is the upstream link-shortening endpoint.
	// Empty disables shortening; share links fall back to the long form.
	ShortenerURL string

	// ShortenerToken is the bearer token for the shortening endpoint.
	ShortenerToken string
}

// Load reads configuration from the environment. A .env file is loaded first
// when present (non-fatal if missing).
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Bind:           getEnvDefault("BIND", ":8080"),
		DBPath:         getEnvDefault("DB_PATH", "./data/checkbill.db"),
		BaseURL:        getEnvDefault("BASE_URL", "http://localhost:8080"),
		ShortenerURL:   os.Getenv("SHORTENER_URL"),
		ShortenerToken: os.Getenv("SHORTENER_TOKEN"),
	}
}

func getEnvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
