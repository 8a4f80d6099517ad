package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth; empty disables it.
	APIKey string

	// Request limits
	MaxBodyBytes int64

	// Locales
	DefaultLocale string
	LocaleDir     string

	// Render latency window
	StatsWindow time.Duration

	ShutdownTimeout time.Duration
}

// LoadEnvFile reads KEY=value pairs from path into the environment without
// replacing variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "3003"),

		APIKey: os.Getenv("CITERENDER_API_KEY"),

		MaxBodyBytes: envInt64("MAX_BODY_BYTES", 1<<20), // 1MB

		DefaultLocale: envOr("DEFAULT_LOCALE", "en-US"),
		LocaleDir:     os.Getenv("LOCALE_DIR"),

		StatsWindow: envDuration("STATS_WINDOW", 1*time.Hour),

		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = 1 * time.Hour
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	return cfg
}

func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	if strings.TrimSpace(c.DefaultLocale) == "" {
		return fmt.Errorf("DEFAULT_LOCALE must not be blank")
	}
	if c.LocaleDir != "" {
		info, err := os.Stat(c.LocaleDir)
		if err != nil {
			return fmt.Errorf("LOCALE_DIR: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("LOCALE_DIR %q is not a directory", c.LocaleDir)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
