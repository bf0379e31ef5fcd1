package agent

import (
	"regexp"
	"strings"
)

// CompletionToolName is the terminal tool that exits the loop with a final
// user-visible result.
const CompletionToolName = "attempt_completion"

// scratchpadPattern matches the model's private reasoning regions. They are
// stripped before tool-call extraction and never re-sent to the model.
var scratchpadPattern = regexp.MustCompile(`(?s)<thinking>.*?</thinking>`)

// childElementPattern matches one direct child element of a tool element.
// Backreference-free: the close tag is validated against the open tag in code.
var childElementPattern = regexp.MustCompile(`(?s)<([A-Za-z_][A-Za-z0-9_]*)>(.*?)</([A-Za-z_][A-Za-z0-9_]*)>`)

// ToolInvocation is one tool call extracted from an assistant response.
type ToolInvocation struct {
	Name   string
	Params map[string]string
}

// StripScratchpad removes scratchpad regions from an assistant response and
// returns the cleaned text plus the removed regions for debug logging.
func StripScratchpad(response string) (clean string, scratch []string) {
	scratch = scratchpadPattern.FindAllString(response, -1)
	clean = scratchpadPattern.ReplaceAllString(response, "")
	return clean, scratch
}

// ParseToolInvocation extracts at most one tool invocation from an
// assistant response. toolNames is the set of registered tool names.
//
// The scratchpad is stripped first. The remainder is scanned for the first
// element whose tag matches a registered tool; its direct child elements
// become named parameters. For the terminal attempt_completion tool the
// entire inner text is the result parameter, with embedded markup preserved
// verbatim. Unknown tools, responses without tool markup, and unclosed
// elements all yield nil.
func ParseToolInvocation(response string, toolNames map[string]bool) *ToolInvocation {
	clean, _ := StripScratchpad(response)

	name, start := firstToolTag(clean, toolNames)
	if name == "" {
		return nil
	}

	openTag := "<" + name + ">"
	closeTag := "</" + name + ">"
	inner := clean[start+len(openTag):]

	var end int
	if name == CompletionToolName {
		// The final answer may legitimately contain markup; take everything
		// up to the last close tag so embedded elements survive verbatim.
		end = strings.LastIndex(inner, closeTag)
	} else {
		end = strings.Index(inner, closeTag)
	}
	if end < 0 {
		// Unclosed element: treat as no tool call and let the loop issue a
		// remediation turn.
		return nil
	}
	inner = inner[:end]

	if name == CompletionToolName {
		return &ToolInvocation{
			Name:   name,
			Params: map[string]string{"result": strings.TrimSpace(inner)},
		}
	}

	params := make(map[string]string)
	for _, match := range childElementPattern.FindAllStringSubmatch(inner, -1) {
		if match[1] != match[3] {
			continue
		}
		params[match[1]] = strings.TrimSpace(match[2])
	}
	return &ToolInvocation{Name: name, Params: params}
}

// firstToolTag finds the earliest open tag whose name is registered.
// Returns the tool name and the tag's byte offset, or ("", -1).
func firstToolTag(text string, toolNames map[string]bool) (string, int) {
	bestName := ""
	bestIdx := -1
	for name := range toolNames {
		idx := strings.Index(text, "<"+name+">")
		if idx < 0 {
			continue
		}
		if bestIdx < 0 || idx < bestIdx {
			bestName, bestIdx = name, idx
		}
	}
	return bestName, bestIdx
}

// SynthesizeMarkup renders a tool invocation back into the wire format the
// model is instructed to emit. Used by tests and prompt examples.
func SynthesizeMarkup(name string, params map[string]string, order []string) string {
	var b strings.Builder
	b.WriteString("<" + name + ">\n")
	for _, key := range order {
		b.WriteString("<" + key + ">" + params[key] + "</" + key + ">\n")
	}
	b.WriteString("</" + name + ">")
	return b.String()
}
