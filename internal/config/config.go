// Package config handles loading and persisting user configuration
// for lmchat. Configuration is stored in ~/.lmchat/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/arin/lmchat/internal/ai"
)

const (
	dirName   = ".lmchat"
	fileName  = "config.yaml"
	envPrefix = "LMCHAT"
	envKeyDir = "LMCHAT_HOME"

	defaultTemperature = 0.7
	defaultMaxTokens   = 1024
)

// Keys accepted by Set.
const (
	KeyServer       = "server"
	KeyModel        = "model"
	KeyTemperature  = "temperature"
	KeyMaxTokens    = "max_tokens"
	KeyTimeout      = "timeout"
	KeySystemPrompt = "system_prompt"
)

// ErrUnknownKey is returned by Set for a key lmchat does not use.
var ErrUnknownKey = errors.New("unknown config key")

// Config holds the user's configuration.
type Config struct {
	Server       string        `mapstructure:"server"`
	Model        string        `mapstructure:"model"`
	Temperature  float64       `mapstructure:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SystemPrompt string        `mapstructure:"system_prompt"`
}

// Dir returns the configuration directory path. LMCHAT_HOME overrides it.
func Dir() string {
	if d := os.Getenv(envKeyDir); d != "" {
		return d
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dirName)
}

// Path returns the config file path.
func Path() string {
	return filepath.Join(Dir(), fileName)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(Path())
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyServer, "")
	v.SetDefault(KeyModel, "")
	v.SetDefault(KeyTemperature, defaultTemperature)
	v.SetDefault(KeyMaxTokens, defaultMaxTokens)
	v.SetDefault(KeyTimeout, "0s")
	v.SetDefault(KeySystemPrompt, "")
	return v
}

// Load reads the configuration from disk and LMCHAT_* environment
// variables. A missing file is not an error.
func Load() (*Config, error) {
	v := newViper()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &cfg, nil
}

// Set validates value and persists it under key. Only keys written this
// way end up in the file; everything else keeps its default.
func Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	norm, err := normalize(key, value)
	if err != nil {
		return err
	}

	raw := map[string]any{}
	data, err := os.ReadFile(Path())
	if err == nil {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	raw[key] = norm
	return save(raw)
}

func normalize(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case KeyServer:
		if value == "" {
			return "", nil
		}
		return ai.NormalizeBaseURL(value)
	case KeyModel, KeySystemPrompt:
		return value, nil
	case KeyTemperature:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 2 {
			return nil, fmt.Errorf("temperature must be a number between 0 and 2, got %q", value)
		}
		return f, nil
	case KeyMaxTokens:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("max_tokens must be a positive integer, got %q", value)
		}
		return n, nil
	case KeyTimeout:
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("timeout must be a duration like 90s or 2m, got %q", value)
		}
		return d.String(), nil
	default:
		return nil, fmt.Errorf("%w %q (valid: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}
}

// Keys lists the settable keys in sorted order.
func Keys() []string {
	keys := []string{KeyServer, KeyModel, KeyTemperature, KeyMaxTokens, KeyTimeout, KeySystemPrompt}
	sort.Strings(keys)
	return keys
}

// save persists the raw key/value map to disk.
func save(raw map[string]any) error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}

	return os.WriteFile(Path(), data, 0o600)
}

// YAML renders the effective configuration for display.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(struct {
		Server       string  `yaml:"server"`
		Model        string  `yaml:"model"`
		Temperature  float64 `yaml:"temperature"`
		MaxTokens    int     `yaml:"max_tokens"`
		Timeout      string  `yaml:"timeout"`
		SystemPrompt string  `yaml:"system_prompt"`
	}{c.Server, c.Model, c.Temperature, c.MaxTokens, c.Timeout.String(), c.SystemPrompt})
}
