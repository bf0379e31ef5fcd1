// Package providers implements the LLM streaming integrations behind the
// agent loop: Anthropic, OpenAI, and Google Gemini, each presenting the same
// text-stream contract. The markup tool protocol means providers stream
// plain text; native tool-calling APIs are not used.
package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/haasonsaas/scout/pkg/models"
)

// Provider is the uniform contract for LLM backends. Implementations must
// be safe for concurrent use; each Stream call owns an independent
// goroutine and channel. Cancelling the context aborts the stream.
type Provider interface {
	// Stream sends a request and returns a channel of response chunks.
	// The channel is closed when the stream completes or fails.
	Stream(ctx context.Context, req *Request) (<-chan *Chunk, error)

	// Name returns the provider identifier ("anthropic", "openai", "google").
	Name() string
}

// Request carries one completion request.
type Request struct {
	// Model is the model identifier; empty selects the provider default.
	Model string

	// System is the system prompt, handled out-of-band from turns.
	System string

	// Turns is the conversation in chronological order.
	Turns []models.Turn

	// MaxTokens bounds the response length; 0 uses the per-model bound.
	MaxTokens int

	// Temperature for sampling. The loop uses 0.3.
	Temperature float64

	// CacheMarks holds indices into Turns that providers supporting
	// prompt-caching annotations should mark cache-eligible. Ignored by
	// providers without caching.
	CacheMarks []int
}

// Chunk is one streamed piece of a completion.
type Chunk struct {
	// Text is the partial response text.
	Text string

	// Done is true on the final chunk of a successful stream.
	Done bool

	// InputTokens and OutputTokens carry usage when the provider reports it.
	InputTokens  int
	OutputTokens int

	// Err terminates the stream when set.
	Err error
}

// Recognized provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
)

// Credential environment variables, the only ones the core reads directly
// for providers.
const (
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvGoogleKey    = "GOOGLE_API_KEY"
)

// New constructs the named provider from environment credentials. An empty
// name auto-detects from available credentials in the order anthropic,
// openai, google.
func New(name, defaultModel string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProviderAnthropic:
		return NewAnthropic(AnthropicConfig{APIKey: os.Getenv(EnvAnthropicKey), DefaultModel: defaultModel})
	case ProviderOpenAI:
		return NewOpenAI(OpenAIConfig{APIKey: os.Getenv(EnvOpenAIKey), DefaultModel: defaultModel})
	case ProviderGoogle:
		return NewGoogle(GoogleConfig{APIKey: os.Getenv(EnvGoogleKey), DefaultModel: defaultModel})
	case "":
		if os.Getenv(EnvAnthropicKey) != "" {
			return NewAnthropic(AnthropicConfig{APIKey: os.Getenv(EnvAnthropicKey), DefaultModel: defaultModel})
		}
		if os.Getenv(EnvOpenAIKey) != "" {
			return NewOpenAI(OpenAIConfig{APIKey: os.Getenv(EnvOpenAIKey), DefaultModel: defaultModel})
		}
		if os.Getenv(EnvGoogleKey) != "" {
			return NewGoogle(GoogleConfig{APIKey: os.Getenv(EnvGoogleKey), DefaultModel: defaultModel})
		}
		return nil, fmt.Errorf("no provider credentials found: set %s, %s, or %s",
			EnvAnthropicKey, EnvOpenAIKey, EnvGoogleKey)
	default:
		return nil, fmt.Errorf("unknown provider %q (recognized: anthropic, openai, google)", name)
	}
}
