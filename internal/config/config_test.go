package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  api_key: test\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 30, cfg.Matching.MinScore)
	assert.Equal(t, 25, cfg.Matching.TopK)
	assert.Equal(t, float64(50), cfg.Matching.MaxRadiusKM)
	assert.Equal(t, 30*24*time.Hour, cfg.Matching.RetentionWindow)
	assert.Equal(t, 90*24*time.Hour, cfg.Matching.RecencyWindow)
	assert.Equal(t, 24, cfg.Matching.MaxHashDistance)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadDefaultWeightsSumToOne(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	w := cfg.Matching.Weights
	sum := w.Embedding + w.Hash + w.Text + w.Color + w.Visual + w.Shape
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, 0.30, w.Embedding)
}

func TestLoadExplicitValuesKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
matching:
  min_score: 55
  retention_window: 168h
  weights:
    hash: 1.0
logging:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, 55, cfg.Matching.MinScore)
	assert.Equal(t, 7*24*time.Hour, cfg.Matching.RetentionWindow)
	// Explicit weights disable the default set entirely.
	assert.Equal(t, 1.0, cfg.Matching.Weights.Hash)
	assert.Equal(t, 0.0, cfg.Matching.Weights.Embedding)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RECLAIM_DB_HOST", "db.internal")
	t.Setenv("RECLAIM_MIN_SCORE", "42")
	t.Setenv("RECLAIM_API_KEY", "secret")

	cfg, err := Load(writeConfig(t, "database:\n  host: localhost\nserver:\n  api_key: file-key\n"))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 42, cfg.Matching.MinScore)
	assert.Equal(t, "secret", cfg.Server.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5433, Name: "n", User: "u", Password: "p"}
	assert.Equal(t, "postgres://u:p@h:5433/n?sslmode=disable", d.DSN())
}
