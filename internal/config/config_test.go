package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.BasicConfig.ServerAddress)
	assert.Equal(t, int64(1), cfg.BasicConfig.DemoUserID)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, []string{"log"}, cfg.Delivery.Channels)
	assert.Equal(t, "v", cfg.Triggers.Key)
	assert.Equal(t, 500, cfg.Triggers.WindowMillis)
	assert.Equal(t, []string{"help me", "emergency"}, cfg.Triggers.Phrases)
	assert.True(t, cfg.Triggers.VoiceSupported())
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{
		"basic_config": {"server_address": ":9000", "demo_user_id": 7},
		"storage": {"driver": "sqlite", "dsn": "crisis.db"},
		"assistant": {"provider": "OpenAI"},
		"providers": {"openai": {"model": "gpt-4o", "api_key": "k"}},
		"delivery": {"channels": ["log", "webhook"], "webhook": {"url": "http://hook"}}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.BasicConfig.ServerAddress)
	assert.Equal(t, int64(7), cfg.BasicConfig.DemoUserID)
	assert.Equal(t, "sqlite3", cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "crisis.db"), cfg.Storage.DSN)
	assert.Equal(t, "openai", cfg.Assistant.Provider)
	assert.Equal(t, "openai", cfg.Assistant.ClassifierProvider)
	assert.Equal(t, "gpt-4o", cfg.Providers["openai"].Model)
	assert.True(t, cfg.Delivery.HasChannel("webhook"))
	assert.False(t, cfg.Delivery.HasChannel("mqtt"))
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
basic_config:
  server_address: ":7000"
triggers:
  key: "x"
  window_ms: 300
  voice_enabled: false
location:
  latitude: 40.7128
  longitude: -74.006
  accuracy: 12
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.BasicConfig.ServerAddress)
	assert.Equal(t, "x", cfg.Triggers.Key)
	assert.Equal(t, 300, cfg.Triggers.WindowMillis)
	assert.False(t, cfg.Triggers.VoiceSupported())
	require.NotNil(t, cfg.Location.Latitude)
	assert.InDelta(t, 40.7128, *cfg.Location.Latitude, 1e-9)
	assert.Equal(t, 5, cfg.Location.TimeoutSeconds)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"driver":   `{"storage": {"driver": "oracle"}}`,
		"sqlite":   `{"storage": {"driver": "sqlite3"}}`,
		"channel":  `{"delivery": {"channels": ["pigeon"]}}`,
		"location": `{"location": {"latitude": 1.5}}`,
		"webhook":  `{"delivery": {"channels": ["webhook"]}}`,
		"mqtt":     `{"delivery": {"channels": ["log", "mqtt"]}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			writeFile(t, path, body)
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestProviderKeyFallsBackToEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"assistant": {"provider": "gemini"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Providers["gemini"].APIKey)
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}
