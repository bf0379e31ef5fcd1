package tools

import (
	"context"
	"strings"

	"github.com/haasonsaas/scout/internal/agent"
)

const queryDefinition = `## query
Run a structural (syntax-aware) code query. The pattern uses meta-variables
like $NAME to match syntax nodes rather than raw text.
Parameters:
- pattern (required): the structural pattern, e.g. "func $NAME($$$ARGS) error"
- language (optional): source language to parse, e.g. "go"
- path (optional): directory or file to query, relative to the project root
Usage:
<query>
<pattern>if err != nil { return $EXPR }</pattern>
<language>go</language>
</query>`

// NewQueryTool builds the structural-search tool over an ast-grep-compatible
// binary.
func NewQueryTool(cfg Config) *agent.Tool {
	cfg.sanitize()
	return &agent.Tool{
		Name:       "query",
		Definition: queryDefinition,
		Params: []agent.ParamSpec{
			{Name: "pattern", Type: agent.ParamString, Required: true, Description: "structural pattern"},
			{Name: "language", Type: agent.ParamString, Description: "source language"},
			{Name: "path", Type: agent.ParamString, Description: "directory or file to query"},
		},
		Execute: func(ctx context.Context, params map[string]any) (string, error) {
			pattern := stringParam(params, "pattern")
			if pattern == "" {
				return "", agent.NewValidation("query: pattern is required")
			}
			target, err := resolveSearchPath(cfg.Root, stringParam(params, "path"))
			if err != nil {
				return "", err
			}

			args := []string{"run", "--pattern", pattern}
			if lang := stringParam(params, "language"); lang != "" {
				args = append(args, "--lang", lang)
			}
			args = append(args, target)

			out, err := runSearchBinary(ctx, cfg.QueryCommand, args)
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
