package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultDBPath(), cfg.DBPath)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Encoding)
	assert.Equal(t, 0.60, cfg.Resolver.WeightedThreshold)
	assert.Equal(t, 0.45, cfg.Resolver.SemanticThreshold)
	assert.Equal(t, 5, cfg.Resolver.TopN)
	assert.Equal(t, 32, cfg.Resolver.MaxTerms)
	assert.Equal(t, 512, cfg.Resolver.CacheSize)
	assert.Equal(t, 5*time.Minute, cfg.Resolver.CacheTTL)
	assert.Equal(t, 50*time.Millisecond, cfg.Normalizer.Budget)
	assert.Equal(t, 25, cfg.Facts.Limit)
	assert.Equal(t, 5*time.Second, cfg.Facts.Budget)
	assert.Positive(t, cfg.Indexer.Workers)
	assert.Equal(t, "", cfg.SynonymsFile)

	assert.Equal(t, cfg.Resolver, Default().Resolver)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
db_path: /tmp/trips.db
log:
  level: debug
  encoding: console
resolver:
  weighted_threshold: 0.7
  cache_ttl: 30s
facts:
  limit: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tripdesk.yaml"), []byte(yaml), 0o644))
	t.Setenv("TRIPDESK_FACTS_LIMIT", "40")
	t.Setenv("TRIPDESK_SYNONYMS_FILE", "~/syn.yaml")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/trips.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Encoding)
	assert.Equal(t, 0.7, cfg.Resolver.WeightedThreshold)
	assert.Equal(t, 30*time.Second, cfg.Resolver.CacheTTL)
	assert.Equal(t, 40, cfg.Facts.Limit)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "syn.yaml"), cfg.SynonymsFile)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TRIPDESK_DB_PATH=/data/from-dotenv.db\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("TRIPDESK_DB_PATH") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data/from-dotenv.db", cfg.DBPath)
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"bad encoding", func(c *Config) { c.Logger.Encoding = "xml" }},
		{"threshold above one", func(c *Config) { c.Resolver.WeightedThreshold = 1.5 }},
		{"zero threshold", func(c *Config) { c.Resolver.SemanticThreshold = 0 }},
		{"zero limit", func(c *Config) { c.Facts.Limit = 0 }},
		{"negative workers", func(c *Config) { c.Indexer.Workers = -1 }},
		{"zero budget", func(c *Config) { c.Normalizer.Budget = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}
