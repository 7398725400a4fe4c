package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(`
log:
  level: debug
analyzer:
  default_score_threshold: 0.4
  supported_languages: [en, de]
context:
  prefix_words: 3
`), 0o600)
	require.NoError(t, err)

	t.Setenv("VEIL_SERVER_PORT", "9001")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 0.4, cfg.Analyzer.DefaultScoreThreshold)
	assert.Equal(t, []string{"en", "de"}, cfg.Analyzer.SupportedLanguages)
	assert.Equal(t, 3, cfg.Context.PrefixWords)
	assert.Equal(t, 9001, cfg.Server.Port)

	// defaults fill the rest
	assert.Equal(t, 5, cfg.Context.SuffixWords)
	assert.Equal(t, 0.35, cfg.Context.SimilarityFactor)
	assert.Equal(t, "en", cfg.Analyzer.DefaultLanguage)
	assert.Equal(t, 10*time.Second, cfg.Analyzer.RecognizerTimeout)
	assert.Equal(t, "memory", cfg.Store.Type)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{Server: ServerConfig{Port: 1234}}
	require.NoError(t, ApplyDefaults(&cfg))
	assert.Equal(t, 1234, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}
