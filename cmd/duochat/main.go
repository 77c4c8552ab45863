package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"duochat/internal/bus"
	"duochat/internal/channel"
	"duochat/internal/config"
	"duochat/internal/domain"
	"duochat/internal/history"
	"duochat/internal/orchestrator"
	"duochat/internal/provider"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "duochat",
		Short:   "duochat: one conversation, two model backends",
		Long:    "duochat runs a shared conversation between a human and the GPT and Claude APIs, fanning each turn out to the tagged providers in order.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ./config.yaml)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the conversation server",
		Long:  "Starts the HTTP API and, when enabled, the WebSocket transcript feed. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}
	return cfg
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))

	logger.Info("starting duochat",
		"version", version,
		"openai_key_set", cfg.Providers.GPT.APIKey != "",
		"anthropic_key_set", cfg.Providers.Claude.APIKey != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transcriptBus := bus.New(100, logger)
	defer transcriptBus.Close()

	store := history.NewStore(transcriptBus)

	httpClient := provider.SharedHTTPClient(0)
	gpt := provider.NewOpenAI(provider.OpenAIConfig{
		APIKey:      cfg.Providers.GPT.APIKey,
		APIBase:     cfg.Providers.GPT.APIBase,
		Model:       cfg.Providers.GPT.Model,
		MaxTokens:   cfg.Providers.GPT.MaxTokens,
		Temperature: cfg.Providers.GPT.Temperature,
		HTTPClient:  httpClient,
		Logger:      logger,
	})
	claude := provider.NewAnthropic(provider.AnthropicConfig{
		APIKey:     cfg.Providers.Claude.APIKey,
		APIBase:    cfg.Providers.Claude.APIBase,
		Model:      cfg.Providers.Claude.Model,
		MaxTokens:  cfg.Providers.Claude.MaxTokens,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	caller := provider.NewCaller(cfg.Engine.MaxRetries, cfg.Engine.AttemptTimeout, logger)

	engine := orchestrator.New(orchestrator.Config{
		History: store,
		Providers: map[string]domain.Provider{
			domain.TagGPT:    gpt,
			domain.TagClaude: claude,
		},
		Caller: caller,
		Logger: logger,
	})

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	web := channel.NewWeb(channel.WebConfig{
		Host:           cfg.Channels.Web.Host,
		Port:           cfg.Channels.Web.Port,
		AllowedOrigins: cfg.Channels.Web.AllowedOrigins,
		MetricsPath:    metricsPath,
		Engine:         engine,
		Logger:         logger,
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return web.Start(groupCtx) })

	if cfg.Channels.WebSocket.Enabled {
		feed := channel.NewWebSocketChannel(channel.WSConfig{
			Port:   cfg.Channels.WebSocket.Port,
			Path:   cfg.Channels.WebSocket.Path,
			Bus:    transcriptBus,
			Logger: logger,
		})
		group.Go(func() error { return feed.Start(groupCtx) })
	}

	err := group.Wait()
	logger.Info("shutdown complete")
	return err
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check provider reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			ctx := context.Background()

			httpClient := provider.SharedHTTPClient(0)
			providers := []domain.Provider{
				provider.NewOpenAI(provider.OpenAIConfig{
					APIKey:     cfg.Providers.GPT.APIKey,
					APIBase:    cfg.Providers.GPT.APIBase,
					Model:      cfg.Providers.GPT.Model,
					HTTPClient: httpClient,
					Logger:     logger,
				}),
				provider.NewAnthropic(provider.AnthropicConfig{
					APIKey:     cfg.Providers.Claude.APIKey,
					APIBase:    cfg.Providers.Claude.APIBase,
					Model:      cfg.Providers.Claude.Model,
					HTTPClient: httpClient,
					Logger:     logger,
				}),
			}

			for _, p := range providers {
				if err := p.Healthy(ctx); err != nil {
					logger.Info("provider", "name", p.Name(), "healthy", false, "err", err)
				} else {
					logger.Info("provider", "name", p.Name(), "healthy", true)
				}
			}
			return nil
		},
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
