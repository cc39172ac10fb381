package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv points HOME at a temp dir and clears every variable Load
// reads, so host configuration cannot bleed into the test.
func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"} {
		t.Setenv(key, "")
	}
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "RESEARCH_") {
			continue
		}
		name, value, _ := strings.Cut(kv, "=")
		require.NoError(t, os.Unsetenv(name))
		t.Cleanup(func() { os.Setenv(name, value) })
	}
	return home
}

func writeGlobalConfig(t *testing.T, home, content string) {
	t.Helper()
	dir := filepath.Join(home, ".research")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultModel, cfg.Models.Default)
	assert.Equal(t, DefaultFallbackModel, cfg.Models.Fallback)
	assert.Equal(t, DefaultProviderTimeout, cfg.Providers.Gemini.Timeout)
	assert.Equal(t, DefaultMaxRetries, cfg.Providers.Anthropic.MaxRetries)
	assert.InDelta(t, DefaultGenTemperature, cfg.Generation.Temperature, 0.001)
	assert.Equal(t, DefaultGenMaxTokens, cfg.Generation.MaxTokens)
	assert.Equal(t, DefaultMaxTurns, cfg.Session.MaxTurns)
	assert.True(t, cfg.Session.Stream)
	assert.Equal(t, DefaultReadFileMaxBytes, cfg.Tools.ReadFileMaxBytes)
	assert.Empty(t, cfg.Providers.Gemini.APIKey)
}

func TestLoad_GlobalConfigFile(t *testing.T) {
	home := isolateEnv(t)
	writeGlobalConfig(t, home, `
models:
  default: claude-sonnet-4-5
providers:
  gemini:
    api_key: from-file
generation:
  temperature: 0.2
session:
  dir: ~/transcripts
`)

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-5", cfg.Models.Default)
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultFallbackModel, cfg.Models.Fallback)
	assert.Equal(t, "from-file", cfg.Providers.Gemini.APIKey)
	assert.InDelta(t, 0.2, cfg.Generation.Temperature, 0.001)
	assert.Equal(t, filepath.Join(home, "transcripts"), cfg.Session.Dir)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := isolateEnv(t)
	writeGlobalConfig(t, home, "models:\n  default: claude-sonnet-4-5\n")
	t.Setenv("RESEARCH_MODELS_DEFAULT", "gpt-4o")
	t.Setenv("RESEARCH_LOG_LEVEL", "debug")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Models.Default)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ProviderKeyEnvFillsGap(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-env")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Providers.Gemini.APIKey)
	assert.Equal(t, "anthropic-env", cfg.Providers.Anthropic.APIKey)
}

func TestLoad_ConfigFileKeyBeatsProviderEnv(t *testing.T) {
	home := isolateEnv(t)
	writeGlobalConfig(t, home, "providers:\n  gemini:\n    api_key: from-file\n")
	t.Setenv("GEMINI_API_KEY", "from-env")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Providers.Gemini.APIKey)
}

func TestDurationOrDefault(t *testing.T) {
	d, err := DurationOrDefault("30s", "10m")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	d, err = DurationOrDefault("", "10m")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, d)

	_, err = DurationOrDefault("not-a-duration", "10m")
	require.Error(t, err)

	_, err = DurationOrDefault("", "")
	require.Error(t, err)
}
