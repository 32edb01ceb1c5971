package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stepwise/pkg/adapters/openai"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvAPIKey, EnvFallbackAPIKey, EnvBaseURL, EnvModel, EnvTemperature, EnvTimeout, EnvRedisAddr, EnvLogLevel} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	tr := cfg.Transport()
	assert.Equal(t, openai.DefaultBaseURL, tr.BaseURL)
	assert.Equal(t, openai.DefaultModel, tr.Model)
	assert.Equal(t, openai.DefaultTemperature, tr.Temperature)
	assert.Equal(t, openai.DefaultTimeout, tr.Timeout)
	assert.Empty(t, tr.APIKey)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "stepwise.yaml", `
provider:
  api_key: file-key
  model: deepseek-reasoner
  temperature: 0
  timeout: 30s
redis:
  addr: localhost:6379
log:
  level: debug
server:
  port: 9090
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	tr := cfg.Transport()
	assert.Equal(t, "file-key", tr.APIKey)
	assert.Equal(t, "deepseek-reasoner", tr.Model)
	assert.Equal(t, 0.0, tr.Temperature)
	assert.Equal(t, 30*time.Second, tr.Timeout)
	assert.Equal(t, openai.DefaultBaseURL, tr.BaseURL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_JSON(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "stepwise.json", `{"provider": {"base_url": "http://localhost:1234/v1", "timeout": "1m"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:1234/v1", cfg.Provider.BaseURL)
	assert.Equal(t, time.Minute, cfg.Transport().Timeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "stepwise.yaml", "provider:\n  api_key: file-key\n  model: from-file\n")
	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvModel, "from-env")
	t.Setenv(EnvTemperature, "0.7")
	t.Setenv(EnvTimeout, "5s")
	t.Setenv(EnvRedisAddr, "redis:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	tr := cfg.Transport()
	assert.Equal(t, "env-key", tr.APIKey)
	assert.Equal(t, "from-env", tr.Model)
	assert.Equal(t, 0.7, tr.Temperature)
	assert.Equal(t, 5*time.Second, tr.Timeout)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoad_FallbackAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		primary  string
		fallback string
		want     string
	}{
		{name: "fallback only", fallback: "ds-key", want: "ds-key"},
		{name: "primary wins", primary: "sw-key", fallback: "ds-key", want: "sw-key"},
		{name: "file wins over fallback", file: "file-key", fallback: "ds-key", want: "file-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(EnvAPIKey, tt.primary)
			t.Setenv(EnvFallbackAPIKey, tt.fallback)
			path := ""
			if tt.file != "" {
				path = writeFile(t, "stepwise.yaml", "provider:\n  api_key: "+tt.file+"\n")
			}

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Provider.APIKey)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "bad yaml", file: "provider: [unclosed"},
		{name: "bad duration", file: "provider:\n  timeout: soon\n"},
		{name: "temperature out of range", file: "provider:\n  temperature: 3\n"},
		{name: "bad env temperature", env: map[string]string{EnvTemperature: "warm"}},
		{name: "bad env timeout", env: map[string]string{EnvTimeout: "-"}},
		{name: "bad port", file: "server:\n  port: 70000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, "stepwise.yaml", tt.file)
			}

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
