package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "data/gptbot.db", cfg.Storage.DatabasePath)
	assert.Equal(t, time.Minute, cfg.GetDigestTick())
	assert.Equal(t, 2*time.Hour, cfg.GetSweepInterval())
	assert.Equal(t, 24*time.Hour, cfg.GetHorizon())
}

func TestLoadParsesYAML(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: gemini
  model: gemini-2.5-flash
  timeout: 30s
storage:
  database_path: /tmp/test.db
scheduler:
  sweep_interval: 1h
logging:
  level: debug
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 30*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, "/tmp/test.db", cfg.Storage.DatabasePath)
	assert.Equal(t, time.Hour, cfg.GetSweepInterval())
	// Unset sections keep their defaults.
	assert.Equal(t, time.Minute, cfg.GetDigestTick())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GPTBOT_DB", "/var/lib/gptbot.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "/var/lib/gptbot.db", cfg.Storage.DatabasePath)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingKeyAndBadProvider(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate())

	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.Provider = "watson"
	assert.Error(t, cfg.Validate())

	cfg.LLM.Provider = "openai"
	assert.NoError(t, cfg.Validate())
}

func TestBadDurationFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "soon"
	assert.Equal(t, 60*time.Second, cfg.GetLLMTimeout())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.LLM.Model = "gpt-4o"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", loaded.LLM.Model)
}
