// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

// Config is the root configuration for the dedup engine
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Index     IndexConfig     `mapstructure:"index"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	History   HistoryConfig   `mapstructure:"history"`
	Tagging   TaggingConfig   `mapstructure:"tagging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// DatabaseConfig holds record store settings
type DatabaseConfig struct {
	Type        string `mapstructure:"type"` // "sqlite" or "postgres"
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// EmbeddingConfig holds embedding provider settings
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // "local" or "openai"
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// IndexConfig holds similarity index settings
type IndexConfig struct {
	Enabled        bool        `mapstructure:"enabled"`
	QueryK         int         `mapstructure:"query_k"`
	TimeoutSeconds int         `mapstructure:"timeout_seconds"`
	Retry          RetryConfig `mapstructure:"retry"`
}

// RetryConfig is an explicit retry policy for similarity backend calls.
// The backend is best-effort: after the final attempt the engine degrades
// to exact-match dedup instead of failing the ingestion.
type RetryConfig struct {
	MaxAttempts      int     `mapstructure:"max_attempts"`
	InitialBackoffMS int     `mapstructure:"initial_backoff_ms"`
	Multiplier       float64 `mapstructure:"multiplier"`
}

// DedupConfig holds similarity gate settings
type DedupConfig struct {
	// Threshold is the default similarity cutoff for classifying a
	// candidate as a duplicate. The 1/(1+distance) conversion and the
	// 0.80-0.85 defaults are empirically chosen, not calibrated; keep
	// them tunable.
	Threshold float64 `mapstructure:"threshold"`
	// Thresholds overrides the default per source platform.
	Thresholds map[string]float64 `mapstructure:"thresholds"`
	// MaxProvenance bounds the merged_from list on a primary record.
	MaxProvenance int `mapstructure:"max_provenance"`
}

// HistoryConfig holds recommendation history settings
type HistoryConfig struct {
	Path          string `mapstructure:"path"`
	CooldownDays  int    `mapstructure:"cooldown_days"`
	RetentionDays int    `mapstructure:"retention_days"`
	// PruneIntervalHours drives the background pruner in serve mode.
	PruneIntervalHours int `mapstructure:"prune_interval_hours"`
}

// TaggingConfig holds tag inference settings
type TaggingConfig struct {
	// RulesPath points to an optional YAML rule pack; empty means the
	// built-in keyword tables.
	RulesPath string `mapstructure:"rules_path"`
}

// MetricsConfig holds the metrics endpoint settings for serve mode
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}
