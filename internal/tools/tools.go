// Package tools provides the built-in tool set registered with the agent:
// code search, structural queries, file extraction and listing, globbing,
// implementation delegation, and the terminal completion tool.
package tools

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Config is shared by all tool constructors.
type Config struct {
	// Root is the project directory the tools operate in.
	Root string

	// SearchCommand is the code-search executable. Default "rg".
	SearchCommand string

	// QueryCommand is the structural-search executable. Default "ast-grep".
	QueryCommand string

	// MaxResultBytes caps any single tool result. Default 64 KiB.
	MaxResultBytes int

	// Logger for tool diagnostics.
	Logger *slog.Logger
}

const defaultMaxResultBytes = 64 << 10

func (c *Config) sanitize() {
	if c.Root == "" {
		c.Root = "."
	}
	if c.SearchCommand == "" {
		c.SearchCommand = "rg"
	}
	if c.QueryCommand == "" {
		c.QueryCommand = "ast-grep"
	}
	if c.MaxResultBytes <= 0 {
		c.MaxResultBytes = defaultMaxResultBytes
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// capResult truncates oversized tool output with a marker so the model
// knows content was dropped.
func capResult(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (result truncated)"
}

// stringParam extracts a string parameter after schema coercion.
func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// intParam extracts an integer parameter, tolerating the string form the
// markup parser produces for undeclared values.
func intParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

// absRootOrEmpty resolves the project root to an absolute path for
// backends, which reject relative working directories.
func absRootOrEmpty(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return ""
	}
	return abs
}

// boolParam extracts a boolean parameter.
func boolParam(params map[string]any, key string) bool {
	switch v := params[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	}
	return false
}
