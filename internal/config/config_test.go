package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ollama", c.DefaultProvider)
	assert.Equal(t, "mistral:7b", c.DefaultModel)
	assert.Equal(t, "http://localhost:11434/v1", c.OpenAIBaseURL)
	assert.Equal(t, 5, c.MaxRetries)
	assert.Equal(t, "output_plots", c.OutputDir)
	assert.Equal(t, 4000, c.RepairErrorMaxChars)
	assert.InDelta(t, 0.1, c.Temperature, 1e-9)
	assert.True(t, c.HistoryEnabled)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), DirName, "history.db"), c.HistoryPath)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_retries: 2\ndefault_model: llama3\n"), 0o600))
	t.Setenv("DATALOOM_DEFAULT_MODEL", "qwen2.5")
	t.Setenv("DATALOOM_API_KEY", "sk-test")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.MaxRetries)
	assert.Equal(t, "qwen2.5", c.DefaultModel)
	assert.Equal(t, "sk-test", c.APIKey)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Set("max_retries", "3"))
	require.NoError(t, c.Set("default_provider", "Gemini"))
	require.NoError(t, Save(c, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, got.MaxRetries)
	assert.Equal(t, "gemini", got.DefaultProvider)
}

func TestSetValidation(t *testing.T) {
	c := &Global{}
	assert.Error(t, c.Set("nope", "1"))
	assert.Error(t, c.Set("max_retries", "0"))
	assert.Error(t, c.Set("temperature", "hot"))
	assert.Error(t, c.Set("default_provider", "bedrock"))
	assert.Error(t, c.Set("log_format", "xml"))
	assert.NoError(t, c.Set("history_enabled", "false"))
	assert.False(t, c.HistoryEnabled)
	assert.Contains(t, Keys(), "repair_error_max_chars")
}
