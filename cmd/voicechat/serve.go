package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/chriscow/voicechat/internal/config"
	"github.com/chriscow/voicechat/internal/server"
	"github.com/chriscow/voicechat/pkg/ai"
	"github.com/chriscow/voicechat/pkg/ai/llm"
	"github.com/chriscow/voicechat/pkg/plugin"
	_ "github.com/chriscow/voicechat/pkg/plugin/fake"   // registers the fake provider
	_ "github.com/chriscow/voicechat/pkg/plugin/openai" // registers the OpenAI compatible provider
	"github.com/chriscow/voicechat/pkg/version"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat and connect server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.ValidateServer(); err != nil {
			return err
		}

		logger, closer, err := config.SetupLogger(cfg.Log)
		if err != nil {
			return err
		}
		defer closer.Close()

		logger.Info("Starting voicechat server",
			slog.String("version", version.Version),
			slog.String("commit", version.GitCommit),
			slog.String("addr", cfg.Server.Addr),
			slog.String("llm_provider", cfg.Server.LLMProvider),
			slog.String("model", cfg.Server.Model))

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return runServer(ctx, cfg.Server)
	},
}

func runServer(ctx context.Context, cfg config.ServerConfig) error {
	if cfg.PluginDir != "" {
		if err := plugin.LoadDynamicPlugins(cfg.PluginDir); err != nil {
			return err
		}
	}

	provider, err := plugin.New(cfg.LLMProvider, map[string]any{
		"api_key":  cfg.LLMAPIKey,
		"base_url": cfg.LLMBaseURL,
		"model":    cfg.Model,
	})
	if err != nil {
		return err
	}

	prompt, err := cfg.LoadPrompt()
	if err != nil {
		return err
	}
	if prompt == "" {
		slog.Warn("No system prompt loaded", slog.String("file", cfg.PromptFile))
	}

	srv, err := server.New(server.Config{
		Addr:          cfg.Addr,
		LiveKitURL:    cfg.LiveKitURL,
		APIKey:        cfg.APIKey,
		APISecret:     cfg.APISecret,
		Room:          cfg.Room,
		TokenTTL:      cfg.TokenTTL,
		SystemPrompt:  prompt,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.Temperature,
		TopP:          cfg.TopP,
		AllowedOrigin: cfg.AllowedOrigin,
	}, llm.WithRetry(provider, ai.DefaultRetryConfig))
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the registered LLM providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDESCRIPTION")
		for _, p := range plugin.List() {
			fmt.Fprintf(w, "%s\t%s\n", p.Name, p.Description)
		}
		return w.Flush()
	},
}
