package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/scout/internal/config"
	"github.com/haasonsaas/scout/internal/server"
)

func buildServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/SSE server",
		Long: `Serves the agent over HTTP: POST /api/chat, a per-session SSE stream of
tool events at /api/sessions/{id}/events, cancellation, history, and
Prometheus metrics at /metrics.

The configuration file is watched; backend settings apply to the running
manager without a restart.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, func(cfg *config.Config) {
				if addr != "" {
					cfg.Server.Addr = addr
				}
			})
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			watcher, err := a.watchConfig()
			if err != nil {
				a.logger.Warn("config watch unavailable", "error", err)
			} else if watcher != nil {
				defer watcher.Close()
			}

			srv := server.New(server.Config{Addr: a.cfg.Server.Addr}, a.agent, a.metrics, a.logger)

			errs := make(chan error, 1)
			go func() { errs <- srv.ListenAndServe() }()

			select {
			case <-ctx.Done():
				a.logger.Info("shutting down")
				return srv.Shutdown(context.Background())
			case err := <-errs:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8422)")
	return cmd
}
