package backend

import (
	"log/slog"
)

// claudeWellKnownPaths are install locations tried when the claude CLI is
// not on the search path.
var claudeWellKnownPaths = []string{
	"/usr/local/bin/claude",
	"/opt/homebrew/bin/claude",
}

// claudeAllowedFlags is the whitelist for caller-supplied extra arguments.
var claudeAllowedFlags = map[string]bool{
	"--max-turns":     true,
	"--verbose":       true,
	"--output-format": true,
	"--allowed-tools": true,
	"--add-dir":       true,
}

// NewClaudeBackend builds the claude CLI profile over the shared process
// pipeline.
func NewClaudeBackend(logger *slog.Logger) *ProcessBackend {
	return NewProcessBackend(ProcessConfig{
		Name:           "claude",
		Command:        "claude",
		WellKnownPaths: claudeWellKnownPaths,
		Caps: Capabilities{
			Languages:      []string{"go", "python", "javascript", "typescript", "rust", "java", "c", "cpp"},
			Streaming:      true,
			EditsFiles:     true,
			TestGeneration: true,
			MaxConcurrent:  1,
		},
		Dependencies: []string{"claude"},
		AllowedFlags: claudeAllowedFlags,
		BuildArgs: func(req *Request, taskFile, model string) []string {
			args := []string{
				"--print",
				"--input-file", taskFile,
				"--permission-mode", "acceptEdits",
			}
			if model != "" {
				args = append(args, "--model="+model)
			}
			return args
		},
	}, logger)
}
