package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/chriscow/voicechat/internal/chat"
	"github.com/chriscow/voicechat/internal/config"
	"github.com/chriscow/voicechat/internal/session"
	"github.com/chriscow/voicechat/internal/tui"
	"github.com/chriscow/voicechat/pkg/livekit"
	"github.com/chriscow/voicechat/pkg/media"
	"github.com/chriscow/voicechat/pkg/realtime"
	"github.com/chriscow/voicechat/pkg/version"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// defaultUILogFile keeps logs off the terminal while the UI owns it.
const defaultUILogFile = "voicechat.log"

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the chat and voice terminal UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.ValidateClient(); err != nil {
			return err
		}
		mode, err := session.ParseMode(cfg.Client.Mode)
		if err != nil {
			return err
		}

		if cfg.Log.File == "" {
			cfg.Log.File = defaultUILogFile
		}
		logs := tui.NewLogHandler(slog.LevelInfo)
		logger, closer, err := config.SetupLogger(cfg.Log, logs)
		if err != nil {
			return err
		}
		defer closer.Close()

		logger.Info("Starting voicechat",
			slog.String("version", version.Version),
			slog.String("commit", version.GitCommit),
			slog.String("base_url", cfg.Client.BaseURL),
			slog.String("chat_url", cfg.Client.ChatURL),
			slog.String("mode", mode.String()))

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return runUI(ctx, cfg.Client, mode, logs)
	},
}

func runUI(ctx context.Context, cfg config.ClientConfig, mode session.Mode, logs *tui.LogHandler) error {
	var sinkOpts []media.Option
	if cfg.RecordDir != "" {
		if err := os.MkdirAll(cfg.RecordDir, 0o755); err != nil {
			return fmt.Errorf("failed to create record directory: %w", err)
		}
		sinkOpts = append(sinkOpts, media.WithOggRecording(cfg.RecordDir))
	}

	bridge := tui.NewBridge()

	ctrl, err := session.New(session.Config{
		BaseURL:         cfg.BaseURL,
		ConnectEndpoint: cfg.ConnectEndpoint,
		NewTransport: func() (realtime.Transport, error) {
			return livekit.New(livekit.Config{MicFile: cfg.MicFile}), nil
		},
		NewClient: func(t realtime.Transport, c realtime.Config) (realtime.Client, error) {
			return realtime.NewClient(t, c)
		},
		View:        bridge,
		Sink:        media.NewSink(sinkOpts...),
		InitialMode: mode,
	})
	if err != nil {
		return err
	}

	handler, err := chat.NewHandler(chat.NewClient(cfg.ChatURL, nil), bridge)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	p := tea.NewProgram(tui.New(ctx, ctrl, handler), tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(p)

	g.Go(func() error {
		logs.Forward(ctx, p)
		return nil
	})
	g.Go(func() error {
		if err := ctrl.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// closing the UI stops everything else
		defer cancel()
		if _, err := p.Run(); !errors.Is(err, tea.ErrProgramKilled) {
			return err
		}
		return nil
	})
	err = g.Wait()

	// leave the room cleanly even when the UI was closed mid-session
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if derr := ctrl.Disconnect(shutdownCtx); derr != nil {
		slog.Warn("Error during disconnect", slog.String("error", derr.Error()))
	}
	return err
}
