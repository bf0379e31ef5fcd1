// Package usage counts tokens for context-window accounting. Counting uses
// tiktoken encodings; models without a published encoding fall back to a
// bytes-per-token estimate.
package usage

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// fallbackBytesPerToken approximates subword tokenizers when no
	// encoding is available for the model.
	fallbackBytesPerToken = 4

	// defaultContextWindow covers models missing from the window table.
	defaultContextWindow = 128_000
)

// contextWindows maps model name prefixes to context window sizes. Longest
// prefix wins.
var contextWindows = map[string]int{
	"claude":           200_000,
	"gpt-4o":           128_000,
	"gpt-4-turbo":      128_000,
	"gpt-4":            8_192,
	"gemini-2.0-flash": 1_048_576,
	"gemini-1.5-pro":   2_097_152,
	"gemini":           1_048_576,
}

// Counter counts tokens with the encoding closest to the configured model.
type Counter struct {
	model string

	once     sync.Once
	encoding *tiktoken.Tiktoken
}

// NewCounter builds a counter for model. The encoding is resolved lazily on
// first Count so construction never fails.
func NewCounter(model string) *Counter {
	return &Counter{model: model}
}

// Count returns the token count of text.
func (c *Counter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(c.model)
		if err != nil {
			// Anthropic and Google models have no tiktoken entry;
			// cl100k_base is a close enough proxy for trimming.
			enc, err = tiktoken.GetEncoding("cl100k_base")
			if err != nil {
				enc = nil
			}
		}
		c.encoding = enc
	})
	if c.encoding == nil {
		return (len(text) + fallbackBytesPerToken - 1) / fallbackBytesPerToken
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// ContextWindow returns the context window size for model.
func (c *Counter) ContextWindow(model string) int {
	best := 0
	window := defaultContextWindow
	for prefix, size := range contextWindows {
		if strings.HasPrefix(model, prefix) && len(prefix) > best {
			best = len(prefix)
			window = size
		}
	}
	return window
}
