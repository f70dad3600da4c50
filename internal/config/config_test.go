package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// clearEnv blanks the unprefixed variables so the host environment cannot
// leak into a test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, names := range legacyEnv {
		for _, n := range names {
			t.Setenv(n, "")
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "ollama", cfg.Classifier.Backend)
	assert.Equal(t, 0.7, cfg.Classifier.DefaultThreshold)
	assert.Equal(t, 30*time.Second, cfg.OCR.Timeout)
	assert.True(t, cfg.Server.Fallback)
}

func TestLoadEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRUTHLENS_SERVER_DEBUG_RESPONSES", "true")
	t.Setenv("TRUTHLENS_CLASSIFIER_TIMEOUT", "45s")
	t.Setenv("TRUTHLENS_STATS_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("OCR_SPACE_API_KEY", "secret")
	t.Setenv("DB_PATH", "/tmp/legacy.db")

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.True(t, cfg.Server.DebugResponses)
	assert.Equal(t, 45*time.Second, cfg.Classifier.Timeout)
	assert.Equal(t, StatsRedis, cfg.Stats.Backend)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.OCR.APIKey)
	assert.Equal(t, "/tmp/legacy.db", cfg.Database.Path)
}

func TestPrefixedEnvWinsOverLegacy(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)

	t.Setenv("TRUTHLENS_SERVER_PORT", "9100")
	cfg, err = Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "truthlens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 5000
classifier:
  backend: remote
  url: http://localhost:8000/predict
  fake_labels: [FAKE]
  cache_ttl: 0s
scraper:
  ignore_robots: true
`), 0o644))

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "remote", cfg.Classifier.Backend)
	assert.Equal(t, []string{"FAKE"}, cfg.Classifier.FakeLabels)
	assert.Zero(t, cfg.Classifier.CacheTTL)
	assert.True(t, cfg.Scraper.IgnoreRobots)
	// Untouched sections keep their defaults
	assert.Equal(t, "spa", cfg.OCR.Language)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"unknown backend", func(c *Config) { c.Classifier.Backend = "bert" }, "classifier.backend"},
		{"lexical without model", func(c *Config) { c.Classifier.Backend = "lexical" }, "model_path"},
		{"openai without key", func(c *Config) { c.Classifier.Backend = "openai" }, "api_key"},
		{"threshold out of range", func(c *Config) { c.Classifier.DefaultThreshold = 1.2 }, "default_threshold"},
		{"redis stats without addr", func(c *Config) { c.Stats.Backend = StatsRedis }, "redis.addr"},
		{"unknown stats backend", func(c *Config) { c.Stats.Backend = "file" }, "stats.backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedactedYAML(t *testing.T) {
	cfg := Default()
	cfg.Classifier.APIKey = "sk-123"
	cfg.OCR.APIKey = "K123"

	data, err := cfg.Redacted().YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-123")
	assert.NotContains(t, string(data), "K123")

	var decoded map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "****", decoded["classifier"]["api_key"])
	assert.Equal(t, "30s", decoded["ocr"]["timeout"])
	assert.Equal(t, "sk-123", cfg.Classifier.APIKey, "receiver copy is untouched")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TRUTHLENS_TEST_DOTENV=from-file\n"), 0o644))
	t.Setenv("TRUTHLENS_TEST_DOTENV", "")
	os.Unsetenv("TRUTHLENS_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("TRUTHLENS_TEST_DOTENV"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
