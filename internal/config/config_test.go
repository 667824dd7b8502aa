package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("PORT", "")

	t.Run("loads defaults when no file is given", func(t *testing.T) {
		cfg, err := Load("")

		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 5000, cfg.Server.Port)
		assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
		assert.Equal(t, []string{"*"}, cfg.Server.AllowOrigins)
		assert.Equal(t, 3, cfg.Model.TopK)
		assert.Equal(t, "models/sopp.onnx", cfg.Model.Path)
		assert.Empty(t, cfg.Cache.RedisURL)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "json", cfg.Log.Format)
		assert.Equal(t, "0.0.0.0:5000", cfg.Addr())
	})

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Server.Port)
	})

	t.Run("reads yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		data := []byte(`
server:
  port: 8081
  max_upload_bytes: 2048
model:
  url: https://example.com/sopp.onnx
  path: /var/lib/sopp/model.onnx
  top_k: 5
cache:
  redis_url: redis://localhost:6379/2
  ttl: 1h
log:
  format: console
`)
		require.NoError(t, os.WriteFile(path, data, 0o600))

		cfg, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, 8081, cfg.Server.Port)
		assert.Equal(t, int64(2048), cfg.Server.MaxUploadBytes)
		assert.Equal(t, "https://example.com/sopp.onnx", cfg.Model.URL)
		assert.Equal(t, "/var/lib/sopp/model.onnx", cfg.Model.Path)
		assert.Equal(t, "models/sopp_metadata.json", cfg.Model.MetadataPath)
		assert.Equal(t, 5, cfg.Model.TopK)
		assert.Equal(t, "redis://localhost:6379/2", cfg.Cache.RedisURL)
		assert.Equal(t, time.Hour, cfg.Cache.TTL)
		assert.Equal(t, "console", cfg.Log.Format)
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o600))

		_, err := Load(path)

		assert.Error(t, err)
	})
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SOPP_SERVER_PORT", "9090")
	t.Setenv("SOPP_SERVER_ALLOW_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SOPP_MODEL_URL", "https://example.com/model.onnx")
	t.Setenv("SOPP_MODEL_TOP_K", "4")
	t.Setenv("SOPP_CACHE_REDIS_URL", "redis://cache:6379/0")
	t.Setenv("SOPP_CACHE_TTL", "90s")
	t.Setenv("SOPP_LOG_LEVEL", "debug")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowOrigins)
	assert.Equal(t, "https://example.com/model.onnx", cfg.Model.URL)
	assert.Equal(t, 4, cfg.Model.TopK)
	assert.Equal(t, "redis://cache:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadPlatformPort(t *testing.T) {
	t.Setenv("PORT", "7000")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoadIgnoresUnparsableEnv(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SOPP_SERVER_PORT", "not-a-port")
	t.Setenv("SOPP_CACHE_TTL", "soon")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
}

func TestLoadIgnoresNegativeFetchRetries(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SOPP_FETCH_MAX_RETRIES", "-1")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, uint64(4), cfg.Fetch.MaxRetries)
}

func TestValidate(t *testing.T) {
	t.Run("rejects zero top_k", func(t *testing.T) {
		cfg := Default()
		cfg.Model.TopK = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects out of range port", func(t *testing.T) {
		cfg := Default()
		cfg.Server.Port = 70000
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects empty model path", func(t *testing.T) {
		cfg := Default()
		cfg.Model.Path = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects runaway fetch retries", func(t *testing.T) {
		cfg := Default()
		cfg.Fetch.MaxRetries = 1 << 63
		assert.Error(t, cfg.Validate())
	})

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})
}
