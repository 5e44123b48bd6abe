package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chriscow/voicechat/internal/chat"
	"github.com/chriscow/voicechat/internal/config"
	"github.com/chriscow/voicechat/pkg/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "voicechat",
	Short: "Chat and talk with a Hindi speaking assistant",
	Long: `voicechat is a terminal client for a conversational assistant. It offers a
text chat mode and a live voice mode over LiveKit, and ships the small
server that backs both.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send one chat message and print the reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.ValidateClient(); err != nil {
			return err
		}
		_, closer, err := config.SetupLogger(cfg.Log)
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return runChat(ctx, chat.NewClient(cfg.Client.ChatURL, nil), args[0], cmd.OutOrStdout())
	},
}

// runChat prints the reply to text, or the fallback message when the
// request fails. The error is still returned so the exit status reflects it.
func runChat(ctx context.Context, asker chat.Asker, text string, out io.Writer) error {
	reply, err := asker.Ask(ctx, text)
	if err != nil {
		slog.Error("Chat request failed", slog.String("error", err.Error()))
		fmt.Fprintln(out, chat.FallbackMessage)
		return err
	}
	fmt.Fprintln(out, reply)
	return nil
}

// loadConfig layers the config file, environment and the command's flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./"+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (console, json)")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of stderr")

	chatCmd.Flags().String("chat-url", "", "Chat endpoint URL")

	uiCmd.Flags().String("chat-url", "", "Chat endpoint URL")
	uiCmd.Flags().String("base-url", "", "Bot server base URL")
	uiCmd.Flags().String("connect-endpoint", "", "Path on the base URL that returns room credentials")
	uiCmd.Flags().String("mode", "", "Initial mode (chat, voice)")
	uiCmd.Flags().String("mic-file", "", "Ogg/Opus file streamed as the microphone")
	uiCmd.Flags().String("record", "", "Directory to record bot audio into")

	serveCmd.Flags().String("addr", "", "Listen address")
	serveCmd.Flags().String("livekit-url", "", "LiveKit server URL handed to clients")
	serveCmd.Flags().String("api-key", "", "LiveKit API key")
	serveCmd.Flags().String("api-secret", "", "LiveKit API secret")
	serveCmd.Flags().String("room", "", "Room every client joins (default: one room per client)")
	serveCmd.Flags().Duration("token-ttl", 0, "Lifetime of issued room tokens")
	serveCmd.Flags().String("allowed-origin", "", "Access-Control-Allow-Origin value")
	serveCmd.Flags().String("llm-provider", "", "LLM provider name, see the providers command")
	serveCmd.Flags().String("llm-base-url", "", "OpenAI compatible API base URL")
	serveCmd.Flags().String("llm-api-key", "", "LLM API key")
	serveCmd.Flags().String("model", "", "Chat completion model")
	serveCmd.Flags().Float32("temperature", 0, "Sampling temperature")
	serveCmd.Flags().Int("max-tokens", 0, "Maximum reply tokens")
	serveCmd.Flags().String("prompt-file", "", "System prompt file")
	serveCmd.Flags().String("plugin-dir", "", "Directory of .so LLM providers to load")

	rootCmd.AddCommand(versionCmd, chatCmd, uiCmd, serveCmd, providersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
