package tools

import (
	"context"
	"strings"

	"github.com/haasonsaas/scout/internal/agent"
	"github.com/haasonsaas/scout/internal/workspace"
)

const searchFilesDefinition = `## searchFiles
Find files by name with a glob pattern. ** matches across directories.
Parameters:
- pattern (required): glob pattern, e.g. "**/*_test.go"
Usage:
<searchFiles>
<pattern>internal/**/*.go</pattern>
</searchFiles>`

// NewSearchFilesTool builds the filename-glob tool.
func NewSearchFilesTool(cfg Config) *agent.Tool {
	cfg.sanitize()
	return &agent.Tool{
		Name:       "searchFiles",
		Definition: searchFilesDefinition,
		Params: []agent.ParamSpec{
			{Name: "pattern", Type: agent.ParamString, Required: true, Description: "glob pattern"},
		},
		Execute: func(ctx context.Context, params map[string]any) (string, error) {
			pattern := stringParam(params, "pattern")
			if pattern == "" {
				return "", agent.NewValidation("searchFiles: pattern is required")
			}
			paths, err := workspace.Glob(cfg.Root, pattern)
			if err != nil {
				return "", agent.NewValidation("searchFiles: bad pattern: " + err.Error())
			}
			if len(paths) == 0 {
				return "no files match", nil
			}
			return capResult(strings.Join(paths, "\n"), cfg.MaxResultBytes), nil
		},
	}
}
