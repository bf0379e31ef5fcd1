package tools

import (
	"context"
	"strings"

	"github.com/haasonsaas/scout/internal/agent"
	"github.com/haasonsaas/scout/internal/workspace"
)

const listFilesDefinition = `## listFiles
List project files, respecting .gitignore.
Parameters:
- path (optional): subdirectory to list, relative to the project root
- limit (optional): maximum entries to return (default 200)
Usage:
<listFiles>
<path>internal</path>
</listFiles>`

// listFilesDefaultLimit bounds the listing when the model asks for none.
const listFilesDefaultLimit = 200

// NewListFilesTool builds the gitignore-aware listing tool.
func NewListFilesTool(cfg Config) *agent.Tool {
	cfg.sanitize()
	return &agent.Tool{
		Name:       "listFiles",
		Definition: listFilesDefinition,
		Params: []agent.ParamSpec{
			{Name: "path", Type: agent.ParamString, Description: "subdirectory to list"},
			{Name: "limit", Type: agent.ParamInteger, Description: "maximum entries"},
		},
		Execute: func(ctx context.Context, params map[string]any) (string, error) {
			target, err := resolveSearchPath(cfg.Root, stringParam(params, "path"))
			if err != nil {
				return "", err
			}
			limit := intParam(params, "limit", listFilesDefaultLimit)

			paths, err := workspace.List(target, limit)
			if err != nil {
				return "", agent.NewError(agent.CategoryToolExecution,
					"listing files: "+err.Error(), err)
			}
			if len(paths) == 0 {
				return "no files", nil
			}
			return capResult(strings.Join(paths, "\n"), cfg.MaxResultBytes), nil
		},
	}
}
