package tools

import (
	"context"

	"github.com/haasonsaas/scout/internal/agent"
	"github.com/haasonsaas/scout/internal/backend"
)

const completionDefinition = `## attempt_completion
Finish the task. The inner text is the final answer shown to the user
verbatim; it may contain markup, code blocks, and file references.
Usage:
<attempt_completion>
The router is defined in internal/server/router.go.
</attempt_completion>`

// NewCompletionTool builds the terminal tool. The loop intercepts it before
// dispatch; the executor exists only so the descriptor is complete.
func NewCompletionTool() *agent.Tool {
	return &agent.Tool{
		Name:       agent.CompletionToolName,
		Definition: completionDefinition,
		Params: []agent.ParamSpec{
			{Name: "result", Type: agent.ParamString, Required: true, Description: "final answer"},
		},
		Execute: func(ctx context.Context, params map[string]any) (string, error) {
			result, _ := params["result"].(string)
			return result, nil
		},
	}
}

// RegisterDefaults wires the standard tool set into an agent. The implement
// tool is registered only when edits are allowed and a manager is provided.
func RegisterDefaults(a *agent.Agent, cfg Config, manager *backend.Manager, editsAllowed bool) error {
	set := []*agent.Tool{
		NewSearchTool(cfg),
		NewQueryTool(cfg),
		NewExtractTool(cfg),
		NewListFilesTool(cfg),
		NewSearchFilesTool(cfg),
		NewCompletionTool(),
	}
	if editsAllowed && manager != nil {
		set = append(set, NewImplementTool(cfg, manager))
	}
	for _, tool := range set {
		if err := a.RegisterTool(tool); err != nil {
			return err
		}
	}
	return nil
}
