package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/scout/internal/backend"
)

// backendProbeTimeout bounds the availability check per backend.
const backendProbeTimeout = 10 * time.Second

func buildBackendsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backends",
		Short: "Inspect implementation backends",
	}
	cmd.AddCommand(buildBackendsListCmd())
	return cmd
}

func buildBackendsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known backends and their availability",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

			for _, b := range []backend.Backend{
				backend.NewAiderBackend(logger),
				backend.NewClaudeBackend(logger),
			} {
				ctx, cancel := context.WithTimeout(cmd.Context(), backendProbeTimeout)
				available := b.IsAvailable(ctx)
				cancel()

				status := "unavailable"
				if available {
					status = fmt.Sprintf("available (%s)", b.Version())
				}
				caps := b.Capabilities()
				fmt.Printf("%-8s %s\n", b.Name(), status)
				fmt.Printf("         languages: %v\n", caps.Languages)
				fmt.Printf("         streaming: %v, tests: %v, max concurrent: %d\n",
					caps.Streaming, caps.TestGeneration, caps.MaxConcurrent)
			}
			return nil
		},
	}
}
