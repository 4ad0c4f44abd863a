// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigDir is the default configuration directory
	DefaultConfigDir = ".sieve"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.json"
)

// Load reads configuration from ~/.sieve/config.json, falling back to
// built-in defaults when the file does not exist.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(homeDir, DefaultConfigDir))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromPath loads configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	homeDir, _ := os.UserHomeDir()

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.sqlite_path", filepath.Join(homeDir, ".sieve/db/records.db"))

	// Embedding defaults: the local hashing embedder needs no API key
	v.SetDefault("embedding.provider", "local")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 256)

	// Index defaults
	v.SetDefault("index.enabled", true)
	v.SetDefault("index.query_k", 3)
	v.SetDefault("index.timeout_seconds", 10)
	v.SetDefault("index.retry.max_attempts", 3)
	v.SetDefault("index.retry.initial_backoff_ms", 100)
	v.SetDefault("index.retry.multiplier", 2.0)

	// Dedup defaults
	v.SetDefault("dedup.threshold", 0.80)
	v.SetDefault("dedup.max_provenance", 50)

	// History defaults
	v.SetDefault("history.path", filepath.Join(homeDir, ".sieve/data/recommended_projects.json"))
	v.SetDefault("history.cooldown_days", 30)
	v.SetDefault("history.retention_days", 90)
	v.SetDefault("history.prune_interval_hours", 24)

	// Metrics defaults
	v.SetDefault("metrics.addr", "localhost:9464")
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	// Validate database type
	if cfg.Database.Type != "sqlite" && cfg.Database.Type != "postgres" {
		return fmt.Errorf("database.type must be 'sqlite' or 'postgres', got '%s'", cfg.Database.Type)
	}
	if cfg.Database.Type == "sqlite" && cfg.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required when type is 'sqlite'")
	}
	if cfg.Database.Type == "postgres" && cfg.Database.PostgresDSN == "" {
		return fmt.Errorf("database.postgres_dsn is required when type is 'postgres'")
	}

	// Validate embedding provider
	if cfg.Embedding.Provider != "local" && cfg.Embedding.Provider != "openai" {
		return fmt.Errorf("embedding.provider must be 'local' or 'openai', got '%s'", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions < 1 {
		return fmt.Errorf("embedding.dimensions must be at least 1, got %d", cfg.Embedding.Dimensions)
	}

	// Validate index settings
	if cfg.Index.QueryK < 1 {
		return fmt.Errorf("index.query_k must be at least 1, got %d", cfg.Index.QueryK)
	}
	if cfg.Index.Retry.MaxAttempts < 1 {
		return fmt.Errorf("index.retry.max_attempts must be at least 1, got %d", cfg.Index.Retry.MaxAttempts)
	}
	if cfg.Index.Retry.Multiplier < 1 {
		return fmt.Errorf("index.retry.multiplier must be at least 1, got %f", cfg.Index.Retry.Multiplier)
	}

	// Validate similarity thresholds
	if cfg.Dedup.Threshold <= 0 || cfg.Dedup.Threshold > 1 {
		return fmt.Errorf("dedup.threshold must be in (0, 1], got %f", cfg.Dedup.Threshold)
	}
	for source, t := range cfg.Dedup.Thresholds {
		if t <= 0 || t > 1 {
			return fmt.Errorf("dedup.thresholds[%s] must be in (0, 1], got %f", source, t)
		}
	}
	if cfg.Dedup.MaxProvenance < 1 {
		return fmt.Errorf("dedup.max_provenance must be at least 1, got %d", cfg.Dedup.MaxProvenance)
	}

	// Validate history windows. Retention must cover the cooldown so that
	// pruning can never make an identity eligible early through data loss.
	if cfg.History.CooldownDays < 0 {
		return fmt.Errorf("history.cooldown_days must not be negative, got %d", cfg.History.CooldownDays)
	}
	if cfg.History.RetentionDays < cfg.History.CooldownDays {
		return fmt.Errorf("history.retention_days (%d) must be >= history.cooldown_days (%d)",
			cfg.History.RetentionDays, cfg.History.CooldownDays)
	}

	return nil
}

// Threshold returns the similarity threshold for a source platform,
// falling back to the default when no override exists.
func (c *Config) Threshold(source string) float64 {
	if t, ok := c.Dedup.Thresholds[source]; ok {
		return t
	}
	return c.Dedup.Threshold
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(homeDir, DefaultConfigDir), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}
