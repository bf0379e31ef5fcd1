package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/scout/internal/agent"
	"github.com/haasonsaas/scout/internal/backend"
)

const implementDefinition = `## implement
Delegate a code-modification task to an implementation backend. Use this for
any change to project files; describe the change precisely and scope it
narrowly.
Parameters:
- task (required): full description of the change to make
- backend (optional): backend name to use
- language (optional): main source language of the change
- auto_commit (optional): "true" to commit the edits
- timeout (optional): seconds before the run is aborted
Usage:
<implement>
<task>Add a /healthz endpoint to the HTTP router that returns 200 with body "ok".</task>
<language>go</language>
</implement>`

// NewImplementTool builds the backend-delegation tool. Registered only when
// edits are allowed.
func NewImplementTool(cfg Config, manager *backend.Manager) *agent.Tool {
	cfg.sanitize()
	return &agent.Tool{
		Name:       "implement",
		Definition: implementDefinition,
		Params: []agent.ParamSpec{
			{Name: "task", Type: agent.ParamString, Required: true, Description: "change to make"},
			{Name: "backend", Type: agent.ParamString, Description: "backend name"},
			{Name: "language", Type: agent.ParamString, Description: "source language"},
			{Name: "auto_commit", Type: agent.ParamBoolean, Description: "commit the edits"},
			{Name: "timeout", Type: agent.ParamInteger, Description: "seconds before abort"},
		},
		Execute: func(ctx context.Context, params map[string]any) (string, error) {
			task := stringParam(params, "task")
			if task == "" {
				return "", agent.NewValidation("implement: task is required")
			}

			req := &backend.Request{
				SessionID:  stringParam(params, "session_id"),
				Task:       task,
				Backend:    stringParam(params, "backend"),
				Language:   strings.ToLower(stringParam(params, "language")),
				WorkDir:    absRootOrEmpty(cfg.Root),
				AutoCommit: boolParam(params, "auto_commit"),
			}
			if secs := intParam(params, "timeout", 0); secs > 0 {
				req.Timeout = time.Duration(secs) * time.Second
			}

			result, err := manager.Implement(ctx, req)
			if err != nil {
				return "", err
			}
			return formatImplementResult(result), nil
		},
	}
}

// formatImplementResult renders a run outcome for the model.
func formatImplementResult(result *backend.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Implementation completed via %s in %s.\n", result.Backend, result.Duration.Round(time.Second))
	if result.Fallback {
		sb.WriteString("Note: the primary backend failed; a fallback produced this result.\n")
	}
	if len(result.Changes) > 0 {
		sb.WriteString("Files changed:\n")
		for _, c := range result.Changes {
			fmt.Fprintf(&sb, "  %s %s\n", c.Kind, c.Path)
		}
	} else {
		sb.WriteString("No file changes detected.\n")
	}
	if result.Stats.FilesChanged > 0 {
		fmt.Fprintf(&sb, "Diff: %d files changed, %d insertions(+), %d deletions(-)\n",
			result.Stats.FilesChanged, result.Stats.Insertions, result.Stats.Deletions)
	}
	return sb.String()
}
