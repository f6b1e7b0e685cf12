package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfrund/chatter/internal/app"
	"github.com/nfrund/chatter/internal/config"
	"github.com/nfrund/chatter/internal/logging"
	"github.com/nfrund/chatter/internal/registry"
	"github.com/nfrund/chatter/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat server",
	Long: `Start the HTTP API and the websocket endpoint.

Configuration is read from .env (when present) and the environment. The server
shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(parent context.Context) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(logging.New(cfg.LogFormat, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, version)
	if err != nil {
		return fmt.Errorf("build dependencies: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := deps.Close(closeCtx); err != nil {
			slog.Error("Failed to release resources", "error", err)
		}
	}()

	reg := registry.New(cfg)
	deps.Register(reg)

	slog.Info("Starting chatter", "version", version, "store", cfg.StoreDriver, "addr", cfg.Addr())
	s := server.New(cfg, reg, app.NewModules(deps))
	if err := s.Start(ctx); err != nil {
		return err
	}
	slog.Info("Server gracefully stopped")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
