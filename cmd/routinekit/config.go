package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/rendis/routinekit/internal/run"
	"github.com/rendis/routinekit/pkg/schema"
)

// Config holds all routinekit CLI configuration.
// Priority: flags > env vars > settings.toml > defaults.
type Config struct {
	DBPath           string `toml:"db_path"`
	LogLevel         string `toml:"log_level"`
	Language         string `toml:"language"`
	MaxPathDepth     int    `toml:"max_path_depth"`
	HydrationRetries int    `toml:"hydration_retries"`
	HydrationBackoff string `toml:"hydration_backoff"`
	HydrationDelay   string `toml:"hydration_delay"`
}

func defaultConfig() Config {
	return Config{
		DBPath:           filepath.Join(routinekitDir(), "routinekit.db"),
		LogLevel:         "info",
		Language:         "en",
		MaxPathDepth:     run.MaxPathDepth,
		HydrationRetries: 2,
		HydrationBackoff: "exponential",
		HydrationDelay:   "200ms",
	}
}

func routinekitDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".routinekit"
	}
	return filepath.Join(home, ".routinekit")
}

func settingsPath() string {
	return filepath.Join(routinekitDir(), "settings.toml")
}

// loadConfig layers the settings file at path (the default location when empty)
// and ROUTINEKIT_* env vars over the defaults. A missing file is not an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		path = settingsPath()
	}

	// Layer 2: settings.toml.
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("parse settings file %s: %w", path, err)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("ROUTINEKIT_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ROUTINEKIT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ROUTINEKIT_LANGUAGE"); v != "" {
		cfg.Language = v
	}
	if v := os.Getenv("ROUTINEKIT_HYDRATION_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HydrationRetries = n
		}
	}

	// The engine bound can only be lowered.
	if cfg.MaxPathDepth <= 0 || cfg.MaxPathDepth > run.MaxPathDepth {
		cfg.MaxPathDepth = run.MaxPathDepth
	}
	return cfg, nil
}

// RetryPolicy returns the hydration retry policy, or nil when retries are off.
func (c Config) RetryPolicy() *schema.RetryPolicy {
	if c.HydrationRetries <= 0 {
		return nil
	}
	return &schema.RetryPolicy{
		Max:     c.HydrationRetries,
		Backoff: c.HydrationBackoff,
		Delay:   c.HydrationDelay,
	}
}
