package config

import "time"

// Defaults returns the built-in configuration: the fixed per-adapter model
// parameters and the retry/timeout policy the engine ships with.
func Defaults() *Config {
	return &Config{
		Channels: ChannelsConfig{
			Web: WebConfig{
				Host:           "127.0.0.1",
				Port:           3001,
				AllowedOrigins: []string{"http://localhost:5173"},
			},
			WebSocket: WebSocketConfig{
				Enabled: true,
				Port:    3002,
				Path:    "/ws",
			},
		},
		Providers: ProvidersConfig{
			GPT: ProviderConfig{
				Model:       "gpt-4",
				MaxTokens:   1000,
				Temperature: 0.7,
			},
			Claude: ProviderConfig{
				Model:     "claude-3-haiku-20240307",
				MaxTokens: 1000,
			},
		},
		Engine: EngineConfig{
			MaxRetries:     2,
			AttemptTimeout: 20 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
