package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pt-nexus/webgate/internal/cli/targetselect"
	"github.com/pt-nexus/webgate/internal/config"
	"github.com/pt-nexus/webgate/internal/logger"
	"github.com/pt-nexus/webgate/internal/server"
)

// NewServeCmd creates the serve command
func NewServeCmd(version string) *cobra.Command {
	var target, listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI and forward API calls to the backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, version, target, listen)
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Proxy target profile: dev or default (or set WEBGATE_PROXY_TARGET)")
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (or set WEBGATE_LISTEN)")

	return cmd
}

func runServe(ctx context.Context, version, target, listen string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.Proxy.Target, err = targetselect.ResolveTarget(target)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Server.Listen = listen
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	srv, err := server.New(cfg, log, version)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info().Str("version", version).Str("target", cfg.Proxy.Target).Msg("Starting webgate...")

	return srv.Start(ctx)
}
