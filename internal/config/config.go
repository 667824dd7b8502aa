package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Model  ModelConfig  `yaml:"model"`
	Fetch  FetchConfig  `yaml:"fetch"`
	Cache  CacheConfig  `yaml:"cache"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Mode           string        `yaml:"mode"`
	StaticDir      string        `yaml:"static_dir"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	AllowOrigins   []string      `yaml:"allow_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

type ModelConfig struct {
	URL            string `yaml:"url"`
	Path           string `yaml:"path"`
	MetadataURL    string `yaml:"metadata_url"`
	MetadataPath   string `yaml:"metadata_path"`
	RuntimeLibrary string `yaml:"runtime_library"`
	TopK           int    `yaml:"top_k"`
}

type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  uint64        `yaml:"max_retries"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
}

type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 5000
	cfg.Server.Mode = "release"
	cfg.Server.StaticDir = "app/static"
	cfg.Server.MaxUploadBytes = 10 << 20
	cfg.Server.AllowOrigins = []string{"*"}
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownGrace = 15 * time.Second
	cfg.Model.Path = "models/sopp.onnx"
	cfg.Model.MetadataPath = "models/sopp_metadata.json"
	cfg.Model.TopK = 3
	cfg.Fetch.Timeout = 5 * time.Minute
	cfg.Fetch.MaxRetries = 4
	cfg.Fetch.BaseBackoff = 500 * time.Millisecond
	cfg.Cache.TTL = 24 * time.Hour
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// Load reads the YAML file at path over Default and then applies SOPP_*
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

const maxFetchRetries = 20

func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be positive")
	}
	if c.Model.Path == "" {
		return errors.New("missing model.path (or SOPP_MODEL_PATH)")
	}
	if c.Model.MetadataPath == "" {
		return errors.New("missing model.metadata_path (or SOPP_MODEL_METADATA_PATH)")
	}
	if c.Model.TopK < 1 {
		return fmt.Errorf("invalid model.top_k %d", c.Model.TopK)
	}
	if c.Fetch.MaxRetries > maxFetchRetries {
		return fmt.Errorf("fetch.max_retries %d exceeds %d", c.Fetch.MaxRetries, maxFetchRetries)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SOPP_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SOPP_SERVER_PORT"); v != "" {
		cfg.Server.Port = parseInt(v, cfg.Server.Port)
	}
	// PORT is what most hosting platforms inject.
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = parseInt(v, cfg.Server.Port)
	}
	if v := os.Getenv("SOPP_SERVER_MODE"); v != "" {
		cfg.Server.Mode = v
	}
	if v := os.Getenv("SOPP_SERVER_STATIC_DIR"); v != "" {
		cfg.Server.StaticDir = v
	}
	if v := os.Getenv("SOPP_SERVER_MAX_UPLOAD_BYTES"); v != "" {
		cfg.Server.MaxUploadBytes = int64(parseInt(v, int(cfg.Server.MaxUploadBytes)))
	}
	if v := os.Getenv("SOPP_SERVER_ALLOW_ORIGINS"); v != "" {
		cfg.Server.AllowOrigins = splitList(v)
	}
	if v := os.Getenv("SOPP_MODEL_URL"); v != "" {
		cfg.Model.URL = v
	}
	if v := os.Getenv("SOPP_MODEL_PATH"); v != "" {
		cfg.Model.Path = v
	}
	if v := os.Getenv("SOPP_MODEL_METADATA_URL"); v != "" {
		cfg.Model.MetadataURL = v
	}
	if v := os.Getenv("SOPP_MODEL_METADATA_PATH"); v != "" {
		cfg.Model.MetadataPath = v
	}
	if v := os.Getenv("SOPP_MODEL_RUNTIME_LIBRARY"); v != "" {
		cfg.Model.RuntimeLibrary = v
	}
	if v := os.Getenv("SOPP_MODEL_TOP_K"); v != "" {
		cfg.Model.TopK = parseInt(v, cfg.Model.TopK)
	}
	if v := os.Getenv("SOPP_FETCH_TIMEOUT"); v != "" {
		cfg.Fetch.Timeout = parseDuration(v, cfg.Fetch.Timeout)
	}
	if v := os.Getenv("SOPP_FETCH_MAX_RETRIES"); v != "" {
		if n := parseInt(v, -1); n >= 0 {
			cfg.Fetch.MaxRetries = uint64(n)
		}
	}
	if v := os.Getenv("SOPP_CACHE_REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
	}
	if v := os.Getenv("SOPP_CACHE_TTL"); v != "" {
		cfg.Cache.TTL = parseDuration(v, cfg.Cache.TTL)
	}
	if v := os.Getenv("SOPP_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SOPP_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func parseInt(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
