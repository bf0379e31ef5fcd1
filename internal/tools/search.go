package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/haasonsaas/scout/internal/agent"
	safeexec "github.com/haasonsaas/scout/internal/exec"
)

const searchDefinition = `## search
Search file contents with a regular expression.
Parameters:
- query (required): the pattern to search for
- path (optional): directory or file to search, relative to the project root
Usage:
<search>
<query>func main</query>
<path>cmd</path>
</search>`

// NewSearchTool builds the content-search tool over a ripgrep-compatible
// binary. Matches come back as path:line:text, bounded by the result cap.
func NewSearchTool(cfg Config) *agent.Tool {
	cfg.sanitize()
	return &agent.Tool{
		Name:       "search",
		Definition: searchDefinition,
		Params: []agent.ParamSpec{
			{Name: "query", Type: agent.ParamString, Required: true, Description: "pattern to search for"},
			{Name: "path", Type: agent.ParamString, Description: "directory or file to search"},
		},
		Execute: func(ctx context.Context, params map[string]any) (string, error) {
			query := stringParam(params, "query")
			if query == "" {
				return "", agent.NewValidation("search: query is required")
			}
			target, err := resolveSearchPath(cfg.Root, stringParam(params, "path"))
			if err != nil {
				return "", err
			}

			args := []string{"--line-number", "--no-heading", "--color", "never",
				"--max-count", "50", "--", query, target}
			out, err := runSearchBinary(ctx, cfg.SearchCommand, args)
			if err != nil {
				return "", err
			}
			if strings.TrimSpace(out) == "" {
				return "no matches", nil
			}
			return capResult(relativizeLines(out, cfg.Root), cfg.MaxResultBytes), nil
		},
	}
}

// resolveSearchPath joins and validates a caller path against the root,
// rejecting escapes and shell metacharacters.
func resolveSearchPath(root, rel string) (string, error) {
	if rel == "" || rel == "." {
		return root, nil
	}
	if safeexec.ShellMetachars.MatchString(rel) || safeexec.ControlChars.MatchString(rel) {
		return "", agent.NewValidation("path contains unsafe characters")
	}
	joined := filepath.Join(root, rel)
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", agent.NewError(agent.CategoryInternal, "resolving root", err)
	}
	joinedAbs, err := filepath.Abs(joined)
	if err != nil {
		return "", agent.NewError(agent.CategoryInternal, "resolving path", err)
	}
	if joinedAbs != rootAbs && !strings.HasPrefix(joinedAbs, rootAbs+string(filepath.Separator)) {
		return "", agent.NewValidation("path escapes the project root")
	}
	return joined, nil
}

// runSearchBinary executes the search command. Exit code 1 means no
// matches, not failure.
func runSearchBinary(ctx context.Context, command string, args []string) (string, error) {
	path, err := exec.LookPath(command)
	if err != nil {
		return "", agent.NewError(agent.CategoryToolExecution,
			command+" is not installed", err).
			WithSuggestion("install " + command + " and ensure it is on PATH")
	}
	out, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", nil
		}
		return "", agent.NewError(agent.CategoryToolExecution,
			fmt.Sprintf("%s failed: %v", command, err), err)
	}
	return string(out), nil
}

// relativizeLines strips the root prefix from absolute result paths so the
// model sees project-relative locations.
func relativizeLines(out, root string) string {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return out
	}
	prefix := rootAbs + string(filepath.Separator)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(lines, "\n")
}
