package agent

import (
	"strings"

	"github.com/haasonsaas/scout/internal/workspace"
)

// maxPromptFilePaths caps the project file sample embedded in the system
// prompt.
const maxPromptFilePaths = 100

// Personas available for the system prompt's role block. Callers may supply
// a full override instead of a persona name.
var Personas = map[string]string{
	"explorer": "You are a meticulous code exploration assistant. You navigate unfamiliar " +
		"codebases, find definitions and usages, and explain what you find with precise " +
		"file and line references.",
	"engineer": "You are a pragmatic software engineer. You investigate code, diagnose " +
		"problems, and when edits are allowed you delegate implementation work to the " +
		"implement tool with clear, scoped instructions.",
	"architect": "You are a software architect. You reason about structure, boundaries, " +
		"and dependencies before details, and you ground every claim in code you have " +
		"actually inspected.",
	"support": "You are a patient support engineer. You answer questions about this " +
		"codebase in plain language, always citing the files you used.",
}

// DefaultPersona is used when none is configured.
const DefaultPersona = "explorer"

const formattingRules = `# Tool protocol

You operate in a loop. On every turn you MUST respond with exactly one tool
call in this markup form, and nothing after it:

<tool_name>
<param>value</param>
</tool_name>

Rules:
- One tool call per message. Additional calls are ignored.
- You may reason privately inside <thinking>...</thinking> before the call;
  everything else must be the tool call itself.
- Tool output will be returned to you wrapped in <tool_result>...</tool_result>.
- When the task is complete, finish with
  <attempt_completion>your final answer to the user</attempt_completion>.
  The inner text is shown to the user verbatim.`

// PromptConfig controls system prompt composition. Compiled once at agent
// construction, not per call.
type PromptConfig struct {
	// Persona names one of Personas. Ignored when Override is set.
	Persona string

	// Override replaces the persona block entirely.
	Override string

	// Root is the project directory sampled for file paths. Empty disables
	// the sample.
	Root string
}

// PromptBuilder composes the system prompt from the persona block, the
// formatting rules, the registered tool definitions, and a sample of
// project file paths.
type PromptBuilder struct {
	roleBlock string
	root      string
}

// NewPromptBuilder resolves the persona at construction time.
func NewPromptBuilder(cfg PromptConfig) *PromptBuilder {
	role := cfg.Override
	if role == "" {
		persona := cfg.Persona
		if persona == "" {
			persona = DefaultPersona
		}
		role = Personas[persona]
		if role == "" {
			role = Personas[DefaultPersona]
		}
	}
	return &PromptBuilder{roleBlock: role, root: cfg.Root}
}

// Build renders the system prompt for one request.
func (b *PromptBuilder) Build(toolDefinitions string) string {
	var sb strings.Builder
	sb.WriteString(b.roleBlock)
	sb.WriteString("\n\n")
	sb.WriteString(formattingRules)

	if toolDefinitions != "" {
		sb.WriteString("\n\n# Available tools\n\n")
		sb.WriteString(toolDefinitions)
	}

	if b.root != "" {
		if paths, err := workspace.List(b.root, maxPromptFilePaths); err == nil && len(paths) > 0 {
			sb.WriteString("\n\n# Project files (sample)\n\n")
			for _, p := range paths {
				sb.WriteString(p)
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}
