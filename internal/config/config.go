// Package config loads the CLI configuration from an optional file and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/stepwise/pkg/adapters/openai"
)

// Environment variables read by Load. They take precedence over the file.
const (
	EnvAPIKey         = "STEPWISE_API_KEY"
	EnvFallbackAPIKey = "DEEPSEEK_API_KEY"
	EnvBaseURL        = "STEPWISE_BASE_URL"
	EnvModel          = "STEPWISE_MODEL"
	EnvTemperature    = "STEPWISE_TEMPERATURE"
	EnvTimeout        = "STEPWISE_TIMEOUT"
	EnvRedisAddr      = "STEPWISE_REDIS_ADDR"
	EnvLogLevel       = "STEPWISE_LOG_LEVEL"
)

// DefaultPath is looked up when no --config flag is given.
const DefaultPath = "stepwise.yaml"

// Config is the on-disk configuration (stepwise.yaml).
type Config struct {
	Provider ProviderConfig `yaml:"provider" json:"provider"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// ProviderConfig describes the chat-completions endpoint.
type ProviderConfig struct {
	APIKey      string   `yaml:"api_key" json:"api_key"`
	BaseURL     string   `yaml:"base_url" json:"base_url"`
	Model       string   `yaml:"model" json:"model"`
	Temperature *float64 `yaml:"temperature" json:"temperature"`
	Timeout     Duration `yaml:"timeout" json:"timeout"`
}

// RedisConfig enables the redis broadcaster when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type ServerConfig struct {
	Port int `yaml:"port" json:"port"`
}

// Duration accepts Go duration strings ("90s", "2m") in YAML and JSON.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return d.parse(raw)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return d.parse(raw)
}

func (d *Duration) parse(raw string) error {
	if raw == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(v)
	return nil
}

// Default returns the configuration used when neither file nor environment set a value.
func Default() *Config {
	t := openai.DefaultConfig()
	temp := t.Temperature
	return &Config{
		Provider: ProviderConfig{
			BaseURL:     t.BaseURL,
			Model:       t.Model,
			Temperature: &temp,
			Timeout:     Duration(t.Timeout),
		},
		Log:    LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads the file at path (YAML, or JSON by extension) over the defaults and
// then applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAPIKey); ok && v != "" {
		c.Provider.APIKey = v
	} else if v, ok := lookup(EnvFallbackAPIKey); ok && v != "" && c.Provider.APIKey == "" {
		c.Provider.APIKey = v
	}
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.Provider.BaseURL = v
	}
	if v, ok := lookup(EnvModel); ok && v != "" {
		c.Provider.Model = v
	}
	if v, ok := lookup(EnvTemperature); ok && v != "" {
		temp, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTemperature, err)
		}
		c.Provider.Temperature = &temp
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		if err := c.Provider.Timeout.parse(v); err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
	}
	if v, ok := lookup(EnvRedisAddr); ok {
		c.Redis.Addr = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate rejects values the transport cannot work with.
// A missing API key is reported later, by whoever needs the transport.
func (c *Config) Validate() error {
	if t := c.Provider.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("temperature must be within [0, 2], got %v", *t)
	}
	if c.Provider.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}

// Transport returns the configuration handed to openai.New.
func (c *Config) Transport() openai.Config {
	out := openai.Config{
		APIKey:  c.Provider.APIKey,
		BaseURL: c.Provider.BaseURL,
		Model:   c.Provider.Model,
		Timeout: time.Duration(c.Provider.Timeout),
	}
	if c.Provider.Temperature != nil {
		out.Temperature = *c.Provider.Temperature
	}
	return out
}
