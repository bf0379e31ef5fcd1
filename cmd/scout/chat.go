package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/scout/internal/agent"
	"github.com/haasonsaas/scout/internal/config"
)

func buildChatCmd() *cobra.Command {
	var (
		sessionID     string
		provider      string
		model         string
		maxIterations int
		persona       string
		allowEdits    bool
		defaultBack   string
		timeoutSecs   int
		jsonOutput    bool
		showEvents    bool
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send one message to the agent and print the response",
		Long: `Sends a message to the agent, which explores the project with tools and
answers. Reuse --session to continue a conversation across invocations.

Interrupting with Ctrl-C cancels the in-flight request; the process exits
with code 499.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.TrimSpace(args[0])
			if message == "" {
				return fmt.Errorf("message is empty")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, func(cfg *config.Config) {
				if provider != "" {
					cfg.Provider.Name = provider
				}
				if model != "" {
					cfg.Provider.Model = model
				}
				if maxIterations > 0 {
					cfg.Agent.MaxIterations = maxIterations
				}
				if persona != "" {
					cfg.Agent.Persona = persona
				}
				if cmd.Flags().Changed("allow-edits") {
					cfg.Agent.AllowEdits = allowEdits
				}
				if defaultBack != "" {
					cfg.Backends.Default = defaultBack
				}
				if timeoutSecs > 0 {
					cfg.Backends.TimeoutSeconds = timeoutSecs
				}
			})
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			// Ctrl-C cancels the session, which unwinds the loop without
			// emitting a terminal tool event.
			go func() {
				<-ctx.Done()
				a.agent.Cancel(sessionID)
			}()

			if showEvents {
				events, unsubscribe := a.agent.Events().Subscribe(sessionID)
				defer unsubscribe()
				go func() {
					for event := range events {
						fmt.Fprintf(os.Stderr, "[%s] %s %s\n", event.Status, event.Name, event.ResultPreview)
					}
				}()
			}

			result, err := a.agent.Chat(ctx, sessionID, message)
			if err != nil {
				if agent.IsCancellation(err) {
					return &exitError{code: exitCancelled, message: "cancelled"}
				}
				return err
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(result)
			}
			fmt.Println(result.Response)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session id to continue (default: new session)")
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider: anthropic, openai, or google")
	cmd.Flags().StringVar(&model, "model", "", "Model override")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Tool-call iteration cap per request")
	cmd.Flags().StringVar(&persona, "persona", "", "System prompt persona")
	cmd.Flags().BoolVar(&allowEdits, "allow-edits", false, "Enable the implement tool")
	cmd.Flags().StringVar(&defaultBack, "backend", "", "Default implementation backend")
	cmd.Flags().IntVar(&timeoutSecs, "timeout", 0, "Backend timeout in seconds")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&showEvents, "events", false, "Print tool lifecycle events to stderr")
	return cmd
}
