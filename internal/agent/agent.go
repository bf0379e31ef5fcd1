// Package agent implements the tool-calling conversation loop: streaming
// model output, extracting markup tool calls, dispatching them, and feeding
// results back until the model finishes or the iteration cap is hit.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/haasonsaas/scout/internal/providers"
	"github.com/haasonsaas/scout/pkg/models"
)

const (
	// DefaultMaxIterations caps the tool-call turns per chat request.
	DefaultMaxIterations = 30

	// DefaultTemperature keeps tool-call output stable.
	DefaultTemperature = 0.3

	// maxCacheMarks is how many recent user turns get prompt-cache
	// annotations on providers that support them.
	maxCacheMarks = 2
)

// remediationMessage is fed back as a user turn when the response contains
// no parsable tool call. The exchange costs an iteration.
const remediationMessage = `Error: your response did not contain a valid tool call.

Respond with exactly one tool call in markup form:

<tool_name>
<param>value</param>
</tool_name>

or finish the task with <attempt_completion>your final answer</attempt_completion>.`

// maxIterationsResponse is returned as the final answer when the loop
// hits its iteration cap without a completion.
const maxIterationsResponse = "Error: max iterations reached"

// Config controls the loop. Zero values take defaults via sanitize.
type Config struct {
	// Model is passed to the provider; empty uses the provider default.
	Model string

	// MaxTokens bounds each response; 0 uses the provider's per-model bound.
	MaxTokens int

	// Temperature for sampling. Default 0.3.
	Temperature float64

	// MaxIterations caps tool-call turns per request. Default 30.
	MaxIterations int

	// MaxHistory caps retained conversation turns. Default 100.
	MaxHistory int

	// Persona selects the system prompt role block.
	Persona string

	// PromptOverride replaces the persona block entirely.
	PromptOverride string

	// Root is the project directory exposed to the prompt's file sample.
	Root string
}

// DefaultConfig returns the standard loop configuration.
func DefaultConfig() Config {
	return Config{
		Temperature:   DefaultTemperature,
		MaxIterations: DefaultMaxIterations,
		MaxHistory:    DefaultMaxHistory,
		Persona:       DefaultPersona,
	}
}

func (c *Config) sanitize() {
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = DefaultMaxHistory
	}
}

// HistoryStore persists conversation turns between processes. Implementations
// must tolerate unknown session ids by returning an empty history.
type HistoryStore interface {
	Load(ctx context.Context, sessionID string) ([]models.Turn, error)
	Save(ctx context.Context, sessionID string, turns []models.Turn) error
}

// TokenCounter estimates token counts for usage reporting.
type TokenCounter interface {
	Count(text string) int
	ContextWindow(model string) int
}

// Agent drives the conversation loop for any number of sessions. Safe for
// concurrent use; each session's loop runs one request at a time.
type Agent struct {
	cfg        Config
	provider   providers.Provider
	registry   *Registry
	dispatcher *Dispatcher
	hub        *CancelHub
	bus        *EventBus
	prompt     *PromptBuilder
	images     *ImageValidator
	store      HistoryStore
	counter    TokenCounter
	logger     *slog.Logger
	tracer     trace.Tracer

	mu            sync.Mutex
	conversations map[string]*Conversation
}

// New builds an agent over a provider. Tools are registered afterwards via
// RegisterTool before the first Chat call.
func New(cfg Config, provider providers.Provider, opts ...Option) *Agent {
	cfg.sanitize()

	a := &Agent{
		cfg:           cfg,
		provider:      provider,
		registry:      NewRegistry(),
		hub:           NewCancelHub(),
		bus:           NewEventBus(),
		logger:        slog.Default(),
		tracer:        noop.NewTracerProvider().Tracer("agent"),
		conversations: make(map[string]*Conversation),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.counter == nil {
		a.counter = heuristicCounter{}
	}
	if a.images == nil {
		a.images = NewImageValidator(a.logger)
	}
	a.prompt = NewPromptBuilder(PromptConfig{
		Persona:  cfg.Persona,
		Override: cfg.PromptOverride,
		Root:     cfg.Root,
	})
	a.dispatcher = NewDispatcher(a.registry, a.hub, a.bus, "", a.logger)
	return a
}

// RegisterTool adds a tool to the loop's registry.
func (a *Agent) RegisterTool(tool *Tool) error {
	return a.registry.Register(tool)
}

// Events exposes the tool-event bus for observers.
func (a *Agent) Events() *EventBus {
	return a.bus
}

// Cancel aborts a session's in-flight request. Returns whether the session
// was known.
func (a *Agent) Cancel(sessionID string) bool {
	return a.hub.Cancel(sessionID)
}

// History returns the display transcript for a session.
func (a *Agent) History(sessionID string) []models.DisplayTurn {
	a.mu.Lock()
	conv, ok := a.conversations[sessionID]
	a.mu.Unlock()
	if !ok {
		return nil
	}
	return conv.Display()
}

// ClearSession drops a session's history and returns the replacement
// session id.
func (a *Agent) ClearSession(sessionID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	conv, ok := a.conversations[sessionID]
	if !ok {
		return sessionID
	}
	delete(a.conversations, sessionID)
	a.hub.Clear(sessionID)
	newID := conv.Clear()
	a.conversations[newID] = conv
	return newID
}

// Chat runs one request through the loop. An empty sessionID starts a fresh
// session; the id actually used is returned in the result.
func (a *Agent) Chat(ctx context.Context, sessionID, message string) (*models.ChatResult, error) {
	if a.provider == nil {
		return nil, NewError(CategoryInternal, "no LLM provider configured", ErrNoProvider)
	}

	conv := a.conversation(ctx, sessionID)
	sessionID = conv.SessionID()

	ctx, span := a.tracer.Start(ctx, "agent.chat",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	// Registering resets any stale cancellation flag from a prior request.
	a.hub.Register(sessionID)
	defer a.hub.SetAbort(sessionID, nil)

	conv.TrimTo(a.cfg.MaxHistory)
	conv.Append(a.userTurn(ctx, conv, message))

	systemPrompt := a.prompt.Build(a.registry.Definitions())
	names := a.registry.Names()
	names[CompletionToolName] = true

	finalResponse := ""
	completed := false

	for iteration := 0; iteration < a.cfg.MaxIterations; iteration++ {
		if a.hub.IsCancelled(sessionID) {
			return nil, NewCancellation(sessionID)
		}

		response, err := a.streamOnce(ctx, sessionID, systemPrompt, conv.Turns())
		if err != nil {
			if IsCancellation(err) || IsCritical(err) || errors.Is(err, ErrEmptyResponse) {
				return nil, err
			}
			// Transient provider failures become the final response; the
			// session stays alive for a follow-up request.
			a.logger.Warn("stream failed", "session_id", sessionID, "error", err)
			finalResponse = errorResponseText(err)
			completed = true
			break
		}
		if a.hub.IsCancelled(sessionID) {
			return nil, NewCancellation(sessionID)
		}
		conv.Append(models.NewTurn(models.RoleAssistant, response))

		inv := ParseToolInvocation(response, names)
		if inv == nil {
			a.logger.Debug("no tool call in response, issuing remediation",
				"session_id", sessionID, "iteration", iteration)
			conv.Append(models.NewTurn(models.RoleUser, remediationMessage))
			conv.TrimTo(a.cfg.MaxHistory + 3)
			continue
		}

		if inv.Name == CompletionToolName {
			result := inv.Params["result"]
			if strings.TrimSpace(result) == "" {
				conv.Append(models.NewTurn(models.RoleUser, remediationMessage))
				conv.TrimTo(a.cfg.MaxHistory + 3)
				continue
			}
			finalResponse = result
			completed = true
			break
		}

		conv.AppendDisplay(models.DisplayTurn{
			Role:      models.RoleToolCall,
			ToolName:  inv.Name,
			Content:   summarizeInvocation(inv),
			CreatedAt: time.Now(),
		})

		toolCtx, toolSpan := a.tracer.Start(ctx, "tool."+inv.Name)
		result, err := a.dispatcher.Execute(toolCtx, sessionID, inv)
		toolSpan.End()
		if err != nil {
			if IsCancellation(err) || IsCritical(err) {
				return nil, err
			}
			// Non-fatal tool errors go back to the model so it can adjust.
			var agentErr *Error
			if errors.As(err, &agentErr) && agentErr.Message != "" {
				result = agentErr.Message
			} else {
				result = err.Error()
			}
		}
		conv.Append(models.NewTurn(models.RoleUser, wrapToolResult(inv.Name, result)))
		conv.TrimTo(a.cfg.MaxHistory + 3)
	}

	if !completed {
		a.logger.Warn("iteration cap reached", "session_id", sessionID, "cap", a.cfg.MaxIterations)
		finalResponse = maxIterationsResponse
	}

	conv.TrimTo(a.cfg.MaxHistory)
	conv.AppendDisplay(models.DisplayTurn{
		Role:      models.RoleAssistant,
		Content:   finalResponse,
		CreatedAt: time.Now(),
	})

	a.persist(ctx, conv)
	return &models.ChatResult{
		Response:   finalResponse,
		SessionID:  sessionID,
		TokenUsage: a.computeUsage(systemPrompt, conv.Turns()),
	}, nil
}

// conversation resolves or creates the conversation for a session, loading
// persisted history on first touch.
func (a *Agent) conversation(ctx context.Context, sessionID string) *Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()

	if sessionID != "" {
		if conv, ok := a.conversations[sessionID]; ok {
			return conv
		}
	}
	conv := NewConversationWithID(sessionID)
	if sessionID != "" && a.store != nil {
		if turns, err := a.store.Load(ctx, sessionID); err != nil {
			a.logger.Warn("loading session history failed", "session_id", sessionID, "error", err)
		} else if len(turns) > 0 {
			conv.Restore(turns)
		}
	}
	a.conversations[conv.SessionID()] = conv
	return conv
}

// userTurn builds the user turn for a message: image references become
// content parts, and the first message of a fresh conversation gets the
// task framing wrapper.
func (a *Agent) userTurn(ctx context.Context, conv *Conversation, message string) models.Turn {
	text := message
	if conv.IsFresh() {
		text = "<task>\n" + message + "\n</task>"
	}

	parts := a.images.ExtractParts(ctx, message)
	if len(parts) <= 1 {
		return models.NewTurn(models.RoleUser, text)
	}
	parts[0] = models.TextPart(text)
	return models.Turn{Role: models.RoleUser, Parts: parts, CreatedAt: time.Now()}
}

// streamOnce performs one full streaming completion and returns the
// accumulated text. The session's abort hook is wired to the stream context
// for the duration.
func (a *Agent) streamOnce(ctx context.Context, sessionID, system string, turns []models.Turn) (string, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.hub.SetAbort(sessionID, cancel)

	chunks, err := a.provider.Stream(streamCtx, &providers.Request{
		Model:       a.cfg.Model,
		System:      system,
		Turns:       turns,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		CacheMarks:  cacheMarks(turns),
	})
	if err != nil {
		return "", a.convertProviderError(err, sessionID)
	}

	var sb strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			return "", a.convertProviderError(chunk.Err, sessionID)
		}
		sb.WriteString(chunk.Text)
	}
	if sb.Len() == 0 {
		return "", NewError(CategoryAPI, "model returned empty response", ErrEmptyResponse)
	}
	return sb.String(), nil
}

// convertProviderError maps provider failures onto the loop's error policy.
func (a *Agent) convertProviderError(err error, sessionID string) error {
	if a.hub.IsCancelled(sessionID) || errors.Is(err, context.Canceled) {
		return NewCancellation(sessionID)
	}
	var provErr *providers.Error
	if errors.As(err, &provErr) {
		switch {
		case provErr.Reason == providers.ReasonCancelled:
			return NewCancellation(sessionID)
		case provErr.Reason.IsCritical():
			return NewCriticalAPI(provErr.Error(), provErr)
		case provErr.Reason == providers.ReasonTimeout:
			return NewTimeout(provErr.Error(), provErr)
		default:
			return NewError(CategoryAPI, provErr.Error(), provErr).
				WithRetryable(provErr.Reason.IsRetryable())
		}
	}
	return NewError(CategoryAPI, err.Error(), err)
}

// errorResponseText renders a caught failure as the final response body.
func errorResponseText(err error) string {
	msg := err.Error()
	var agentErr *Error
	if errors.As(err, &agentErr) && agentErr.Message != "" {
		msg = agentErr.Message
	}
	return "Error: " + msg
}

// cacheMarks returns the indices of the most recent user turns, newest
// last, for providers with prompt-cache annotations.
func cacheMarks(turns []models.Turn) []int {
	var marks []int
	for i := len(turns) - 1; i >= 0 && len(marks) < maxCacheMarks; i-- {
		if turns[i].Role == models.RoleUser {
			marks = append(marks, i)
		}
	}
	// Reverse into ascending order.
	for i, j := 0, len(marks)-1; i < j; i, j = i+1, j-1 {
		marks[i], marks[j] = marks[j], marks[i]
	}
	return marks
}

// wrapToolResult frames a tool result for the next model turn.
func wrapToolResult(toolName, result string) string {
	return fmt.Sprintf("<tool_result tool=%q>\n%s\n</tool_result>", toolName, result)
}

// summarizeInvocation renders a short display line for a tool call.
func summarizeInvocation(inv *ToolInvocation) string {
	var args []string
	for k, v := range inv.Params {
		if len(v) > 60 {
			v = v[:60] + "..."
		}
		args = append(args, k+"="+v)
	}
	return inv.Name + "(" + strings.Join(args, ", ") + ")"
}

// persist writes the conversation through the history store, if configured.
func (a *Agent) persist(ctx context.Context, conv *Conversation) {
	if a.store == nil {
		return
	}
	if err := a.store.Save(ctx, conv.SessionID(), conv.Turns()); err != nil {
		a.logger.Warn("persisting session failed", "session_id", conv.SessionID(), "error", err)
	}
}

// computeUsage estimates token consumption for the finished request.
func (a *Agent) computeUsage(system string, turns []models.Turn) models.TokenUsage {
	input := a.counter.Count(system)
	output := 0
	for _, turn := range turns {
		n := a.counter.Count(turn.Text())
		if turn.Role == models.RoleAssistant {
			output += n
		} else {
			input += n
		}
	}
	return models.TokenUsage{
		ContextWindow: a.counter.ContextWindow(a.cfg.Model),
		InputTokens:   input,
		OutputTokens:  output,
		TotalTokens:   input + output,
	}
}

// heuristicCounter is the fallback when no tokenizer is wired: roughly four
// bytes per token, 200k context.
type heuristicCounter struct{}

func (heuristicCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

func (heuristicCounter) ContextWindow(string) int {
	return 200_000
}
