package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/haasonsaas/scout/internal/agent"
)

const extractDefinition = `## extract
Read a range of lines from a file, with line numbers.
Parameters:
- path (required): file path relative to the project root
- start_line (optional): first line to read, 1-based (default 1)
- end_line (optional): last line to read (default start_line + 199)
Usage:
<extract>
<path>internal/server/router.go</path>
<start_line>40</start_line>
<end_line>80</end_line>
</extract>`

// extractDefaultSpan is how many lines come back when no end is given.
const extractDefaultSpan = 200

// NewExtractTool builds the file-extraction tool.
func NewExtractTool(cfg Config) *agent.Tool {
	cfg.sanitize()
	return &agent.Tool{
		Name:       "extract",
		Definition: extractDefinition,
		Params: []agent.ParamSpec{
			{Name: "path", Type: agent.ParamString, Required: true, Description: "file to read"},
			{Name: "start_line", Type: agent.ParamInteger, Description: "first line, 1-based"},
			{Name: "end_line", Type: agent.ParamInteger, Description: "last line, inclusive"},
		},
		Execute: func(ctx context.Context, params map[string]any) (string, error) {
			rel := stringParam(params, "path")
			if rel == "" {
				return "", agent.NewValidation("extract: path is required")
			}
			path, err := resolveSearchPath(cfg.Root, rel)
			if err != nil {
				return "", err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return "", agent.NewError(agent.CategoryToolExecution,
					"reading "+rel+": "+err.Error(), err)
			}

			lines := strings.Split(string(data), "\n")
			start := intParam(params, "start_line", 1)
			if start < 1 {
				start = 1
			}
			end := intParam(params, "end_line", start+extractDefaultSpan-1)
			if end > len(lines) {
				end = len(lines)
			}
			if start > len(lines) {
				return "", agent.NewValidation(fmt.Sprintf(
					"extract: start_line %d is past the end of %s (%d lines)", start, rel, len(lines)))
			}
			if end < start {
				return "", agent.NewValidation("extract: end_line is before start_line")
			}

			var sb strings.Builder
			for i := start; i <= end; i++ {
				fmt.Fprintf(&sb, "%d\t%s\n", i, lines[i-1])
			}
			return capResult(sb.String(), cfg.MaxResultBytes), nil
		},
	}
}
