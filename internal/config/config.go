// Package config loads duochat configuration with a layered approach:
// built-in defaults, a YAML file with ${VAR} expansion, then environment
// overrides for the credentials, then validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Channels  ChannelsConfig  `yaml:"channels"`
	Providers ProvidersConfig `yaml:"providers"`
	Engine    EngineConfig    `yaml:"engine"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

type ChannelsConfig struct {
	Web       WebConfig       `yaml:"web"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // empty or "*" allows any origin
}

type WebSocketConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

type ProvidersConfig struct {
	GPT    ProviderConfig `yaml:"gpt"`
	Claude ProviderConfig `yaml:"claude"`
}

type ProviderConfig struct {
	APIKey      string  `yaml:"api_key"`
	APIBase     string  `yaml:"api_base,omitempty"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature,omitempty"`
}

type EngineConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// DefaultConfigPath is where init writes and serve looks first.
func DefaultConfigPath() string {
	return "config.yaml"
}

// Load reads configuration. An empty path triggers discovery: ./config.yaml,
// then /etc/duochat/config.yaml; a missing file falls back to defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(path)
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", filePath, err)
		}
		data = []byte(ExpandEnvVars(string(data)))
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func discoverConfigFile(path string) string {
	if path != "" {
		return path
	}
	if envPath := os.Getenv("DUOCHAT_CONFIG"); envPath != "" {
		return envPath
	}
	for _, candidate := range []string{"config.yaml", "/etc/duochat/config.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// envVarPattern matches ${VAR} and ${VAR:-default} in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; without a
// default, an unset variable leaves the text unchanged.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		name := groups[1]
		defaultVal, hasDefault := "", false
		if len(groups) >= 3 && groups[2] != "" {
			defaultVal, hasDefault = groups[2], true
		}

		val, exists := os.LookupEnv(name)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// applyEnvOverrides maps the conventional credential variables onto the
// config so a plain environment works without any file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Providers.GPT.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Providers.Claude.APIKey = v
	}
}

// Save writes the config as YAML, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has usable values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Channels.Web.Port < 0 || cfg.Channels.Web.Port > 65535 {
		errs = append(errs, "channels.web.port must be between 0 and 65535")
	}
	if cfg.Channels.WebSocket.Port < 0 || cfg.Channels.WebSocket.Port > 65535 {
		errs = append(errs, "channels.websocket.port must be between 0 and 65535")
	}
	if cfg.Channels.WebSocket.Enabled && cfg.Channels.WebSocket.Port == cfg.Channels.Web.Port {
		errs = append(errs, "channels.websocket.port must differ from channels.web.port")
	}
	if cfg.Engine.MaxRetries < 0 || cfg.Engine.MaxRetries > 10 {
		errs = append(errs, "engine.max_retries must be between 0 and 10")
	}
	if cfg.Engine.AttemptTimeout < time.Second {
		errs = append(errs, "engine.attempt_timeout must be at least 1s")
	}
	for name, pc := range map[string]ProviderConfig{
		"gpt":    cfg.Providers.GPT,
		"claude": cfg.Providers.Claude,
	} {
		if pc.MaxTokens < 1 {
			errs = append(errs, fmt.Sprintf("providers.%s.max_tokens must be >= 1", name))
		}
		if pc.Temperature < 0 || pc.Temperature > 2 {
			errs = append(errs, fmt.Sprintf("providers.%s.temperature must be between 0 and 2", name))
		}
	}
	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "log.level must be one of: debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
