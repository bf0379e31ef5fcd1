package backend

import (
	"log/slog"
	"os"
)

// aiderWellKnownPaths are install locations tried when aider is not on the
// search path.
var aiderWellKnownPaths = []string{
	"/usr/local/bin/aider",
	"/usr/bin/aider",
	"/opt/homebrew/bin/aider",
}

// aiderAllowedFlags is the whitelist for caller-supplied extra arguments.
var aiderAllowedFlags = map[string]bool{
	"--edit-format":             true,
	"--map-tokens":              true,
	"--no-pretty":               true,
	"--dry-run":                 true,
	"--verbose":                 true,
	"--dark-mode":               true,
	"--no-gitignore":            true,
	"--test-cmd":                true,
	"--auto-test":               true,
	"--subtree-only":            true,
	"--timeout":                 true,
	"--max-chat-history-tokens": true,
}

// NewAiderBackend builds the aider profile over the shared process pipeline.
func NewAiderBackend(logger *slog.Logger) *ProcessBackend {
	return NewProcessBackend(ProcessConfig{
		Name:           "aider",
		Command:        "aider",
		WellKnownPaths: aiderWellKnownPaths,
		Caps: Capabilities{
			Languages:      []string{"go", "python", "javascript", "typescript", "rust", "java", "ruby"},
			Streaming:      true,
			EditsFiles:     true,
			TestGeneration: true,
			MaxConcurrent:  2,
		},
		Dependencies: []string{"aider", "git"},
		DetectModel:  detectAiderModel,
		AllowedFlags: aiderAllowedFlags,
		BuildArgs: func(req *Request, taskFile, model string) []string {
			args := []string{
				"--message-file", taskFile,
				"--yes-always",
				"--no-stream",
				"--no-show-model-warnings",
			}
			if model != "" {
				args = append(args, "--model="+model)
			}
			if req.AutoCommit {
				args = append(args, "--auto-commits")
			} else {
				args = append(args, "--no-auto-commits")
			}
			return args
		},
	}, logger)
}

// detectAiderModel picks a model from whichever provider credential is
// present, matching aider's own shorthand names.
func detectAiderModel() string {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return "sonnet"
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return "gpt-4o"
	}
	if os.Getenv("GOOGLE_API_KEY") != "" {
		return "gemini/gemini-2.0-flash"
	}
	return ""
}
