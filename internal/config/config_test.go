// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromPath_Defaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 3, cfg.Index.QueryK)
	assert.Equal(t, 0.80, cfg.Dedup.Threshold)
	assert.Equal(t, 30, cfg.History.CooldownDays)
	assert.Equal(t, 90, cfg.History.RetentionDays)
	assert.Equal(t, 3, cfg.Index.Retry.MaxAttempts)
}

func TestLoadFromPath_Overrides(t *testing.T) {
	path := writeConfig(t, `{
		"database": {"type": "sqlite", "sqlite_path": "/tmp/records.db"},
		"dedup": {"threshold": 0.85, "thresholds": {"github": 0.82}},
		"history": {"cooldown_days": 14, "retention_days": 60}
	}`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/records.db", cfg.Database.SQLitePath)
	assert.Equal(t, 0.85, cfg.Dedup.Threshold)
	assert.Equal(t, 14, cfg.History.CooldownDays)
	assert.Equal(t, 60, cfg.History.RetentionDays)

	assert.Equal(t, 0.82, cfg.Threshold("github"))
	assert.Equal(t, 0.85, cfg.Threshold("twitter"))
}

func TestLoadFromPath_InvalidThreshold(t *testing.T) {
	path := writeConfig(t, `{"dedup": {"threshold": 1.5}}`)

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dedup.threshold")
}

func TestLoadFromPath_RetentionShorterThanCooldown(t *testing.T) {
	path := writeConfig(t, `{"history": {"cooldown_days": 30, "retention_days": 7}}`)

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retention_days")
}

func TestLoadFromPath_BadDatabaseType(t *testing.T) {
	path := writeConfig(t, `{"database": {"type": "mysql"}}`)

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.type")
}

func TestLoadFromPath_MissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
