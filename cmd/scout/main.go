// Package main provides the CLI entry point for Scout, an agentic code
// exploration and modification assistant.
//
// Scout streams a conversation with an LLM provider (Anthropic, OpenAI, or
// Google), lets the model explore the project through read-only tools, and
// optionally delegates code changes to implementation backends such as aider
// or the Claude CLI.
//
// # Basic Usage
//
// Ask a question about the current project:
//
//	scout chat "where is the config loader?"
//
// Allow code changes and delegate them to a backend:
//
//	scout chat --allow-edits "add a /healthz endpoint"
//
// Run the HTTP/SSE server:
//
//	scout serve --config scout.yaml
//
// # Environment Variables
//
//   - SCOUT_PROVIDER: provider name (anthropic, openai, google)
//   - SCOUT_MODEL: model override
//   - ANTHROPIC_API_KEY / OPENAI_API_KEY / GOOGLE_API_KEY: credentials
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// exitCancelled mirrors the nginx convention for client-closed requests.
const exitCancelled = 499

var (
	configPath    string
	traceExporter string
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.message)
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scout",
		Short: "Scout - agentic code exploration and modification",
		Long: `Scout explores a codebase in conversation with an LLM and can delegate
code changes to implementation backends.

Supported providers: Anthropic (Claude), OpenAI (GPT), Google (Gemini)
Supported backends: aider, claude`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (YAML or JSON5)")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace", "", "Trace exporter (none, stdout, otlp)")

	rootCmd.AddCommand(
		buildChatCmd(),
		buildServeCmd(),
		buildSessionsCmd(),
		buildBackendsCmd(),
	)
	return rootCmd
}

// exitError carries a process exit code through cobra's error path.
type exitError struct {
	code    int
	message string
}

func (e *exitError) Error() string { return e.message }
