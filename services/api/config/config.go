package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/JamesSample/icpw2/internal/db"
)

// Config holds environment-driven settings for the REST API.
type Config struct {
	// DatabaseURL is a Postgres URL, or sqlite://path for a staging copy.
	// SQLite takes one import at a time; reads stay available meanwhile.
	DatabaseURL   string
	Schema        string
	Port          int
	BearerToken   string
	DefaultLimit  int
	MaxUploadMB   int
	ImportTimeout time.Duration
	LogLevel      string
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		Schema:        db.DefaultSchema,
		Port:          8080,
		DefaultLimit:  200,
		MaxUploadMB:   20,
		ImportTimeout: 5 * time.Minute,
		LogLevel:      "info",
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	if schema := os.Getenv("DB_SCHEMA"); schema != "" {
		cfg.Schema = schema
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	} else if portStr := os.Getenv("API_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid API_PORT: %s", portStr)
		}
	}

	if limitStr := os.Getenv("API_DEFAULT_LIMIT"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			cfg.DefaultLimit = limit
		} else {
			return cfg, fmt.Errorf("invalid API_DEFAULT_LIMIT: %s", limitStr)
		}
	}

	if mbStr := os.Getenv("API_MAX_UPLOAD_MB"); mbStr != "" {
		if mb, err := strconv.Atoi(mbStr); err == nil && mb > 0 {
			cfg.MaxUploadMB = mb
		} else {
			return cfg, fmt.Errorf("invalid API_MAX_UPLOAD_MB: %s", mbStr)
		}
	}

	if timeoutStr := os.Getenv("IMPORT_TIMEOUT"); timeoutStr != "" {
		if d, err := time.ParseDuration(timeoutStr); err == nil && d > 0 {
			cfg.ImportTimeout = d
		} else {
			return cfg, fmt.Errorf("invalid IMPORT_TIMEOUT: %s", timeoutStr)
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// MaxUploadBytes is the largest template accepted by the import endpoint.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
