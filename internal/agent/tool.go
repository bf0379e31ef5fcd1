package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ParamType enumerates the primitive types a tool parameter may declare.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamBoolean ParamType = "boolean"
)

// ParamSpec declares one tool parameter.
type ParamSpec struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
}

// Executor runs a tool. Executors are pure functions of their parameters;
// session registration, events, and cancellation live in the wrapper.
type Executor func(ctx context.Context, params map[string]any) (string, error)

// Tool is a registered capability exposed to the model through the markup
// contract.
type Tool struct {
	// Name is unique within a registry and doubles as the markup tag.
	Name string

	// Definition is the verbatim block inserted into the system prompt so
	// the model knows the tool exists.
	Definition string

	// Params declares the parameter schema.
	Params []ParamSpec

	// Execute runs the tool.
	Execute Executor

	schema *jsonschema.Schema
}

// compileSchema builds and compiles the JSON schema derived from Params.
func (t *Tool) compileSchema() error {
	doc := map[string]any{
		"type":                 "object",
		"additionalProperties": true,
	}
	props := map[string]any{}
	var required []string
	for _, p := range t.Params {
		props[p.Name] = map[string]any{"type": string(p.Type)}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	doc["properties"] = props
	if len(required) > 0 {
		sort.Strings(required)
		doc["required"] = required
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	schema, err := jsonschema.CompileString(t.Name+".schema.json", string(raw))
	if err != nil {
		return fmt.Errorf("tool %s: compile schema: %w", t.Name, err)
	}
	t.schema = schema
	return nil
}

// CoerceParams converts the string-valued markup parameters into typed
// values per the declared schema. Unknown parameters pass through as
// strings; incompatible values fail validation downstream.
func (t *Tool) CoerceParams(params map[string]string) map[string]any {
	out := make(map[string]any, len(params))
	specs := make(map[string]ParamSpec, len(t.Params))
	for _, p := range t.Params {
		specs[p.Name] = p
	}
	for key, value := range params {
		spec, ok := specs[key]
		if !ok {
			out[key] = value
			continue
		}
		switch spec.Type {
		case ParamInteger:
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				out[key] = n
			} else {
				out[key] = value
			}
		case ParamBoolean:
			if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
				out[key] = b
			} else {
				out[key] = value
			}
		default:
			out[key] = value
		}
	}
	return out
}

// Validate checks coerced parameters against the compiled schema.
func (t *Tool) Validate(params map[string]any) error {
	if t.schema == nil {
		return nil
	}
	if err := t.schema.Validate(anyMap(params)); err != nil {
		return NewValidation(fmt.Sprintf("tool %s: %v", t.Name, err))
	}
	return nil
}

// anyMap converts to the interface{} shape the validator expects.
func anyMap(params map[string]any) any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// Registry is a name-keyed mapping of tool descriptors, populated at agent
// construction and immutable afterwards from the loop's point of view.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool, compiling its parameter schema. Registering a
// duplicate name replaces the prior descriptor.
func (r *Registry) Register(tool *Tool) error {
	if strings.TrimSpace(tool.Name) == "" {
		return NewValidation("tool name is required")
	}
	if err := tool.compileSchema(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; !exists {
		r.order = append(r.order, tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names as a membership set for the parser.
func (r *Registry) Names() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make(map[string]bool, len(r.tools))
	for name := range r.tools {
		names[name] = true
	}
	return names
}

// Definitions concatenates the human-readable tool definitions in
// registration order for the system prompt.
func (r *Registry) Definitions() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var b strings.Builder
	for _, name := range r.order {
		tool := r.tools[name]
		if tool.Definition == "" {
			continue
		}
		b.WriteString(tool.Definition)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}
