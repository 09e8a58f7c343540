package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/JamesSample/icpw2/internal/db"
	"github.com/JamesSample/icpw2/internal/source"
	"github.com/JamesSample/icpw2/internal/transform"
)

const (
	defaultTimeout     = 10 * time.Minute
	defaultHTTPTimeout = 60 * time.Second
	defaultLogLevel    = "info"
)

// Config holds runtime configuration for the importer.
type Config struct {
	DatabaseURL string
	Schema      string
	Duplicates  transform.Policy
	// DryRun is true unless DRY_RUN is explicitly false or --apply is given.
	DryRun      bool
	Timeout     time.Duration
	HTTPTimeout time.Duration
	LogLevel    string
	S3          source.S3Config
}

// Load reads configuration from environment variables (optionally .env).
// DATABASE_URL may be left empty here and supplied by a flag; Validate
// checks the final result.
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Schema:      strings.TrimSpace(os.Getenv("DB_SCHEMA")),
		Duplicates:  transform.PolicyMean,
		DryRun:      true,
		Timeout:     defaultTimeout,
		HTTPTimeout: defaultHTTPTimeout,
		LogLevel:    defaultLogLevel,
	}
	if cfg.Schema == "" {
		cfg.Schema = db.DefaultSchema
	}

	if v := strings.TrimSpace(os.Getenv("IMPORT_DUPLICATES")); v != "" {
		p, err := transform.ParsePolicy(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid IMPORT_DUPLICATES: %w", err)
		}
		cfg.Duplicates = p
	}

	if v := strings.TrimSpace(os.Getenv("DRY_RUN")); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			cfg.DryRun = true
		case "0", "false", "no":
			cfg.DryRun = false
		default:
			return cfg, fmt.Errorf("invalid DRY_RUN: %q", v)
		}
	}

	var err error
	if cfg.Timeout, err = duration("IMPORT_TIMEOUT", defaultTimeout); err != nil {
		return cfg, err
	}
	if cfg.HTTPTimeout, err = duration("HTTP_TIMEOUT", defaultHTTPTimeout); err != nil {
		return cfg, err
	}

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.S3 = source.S3Config{
		Region:    strings.TrimSpace(os.Getenv("S3_REGION")),
		Endpoint:  strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		PathStyle: strings.EqualFold(strings.TrimSpace(os.Getenv("S3_PATH_STYLE")), "true"),
	}

	return cfg, nil
}

// Validate reports settings the importer cannot run without.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.Timeout <= 0 {
		return errors.New("IMPORT_TIMEOUT must be positive")
	}
	return c.Duplicates.Validate()
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
