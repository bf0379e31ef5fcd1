package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/scout/pkg/models"
)

// anthropicDefaultModel is used when neither the request nor the config
// names one.
const anthropicDefaultModel = "claude-sonnet-4-20250514"

// anthropicMaxTokens is the per-model output bound applied when the request
// does not set one.
const anthropicMaxTokens = 8192

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	// APIKey is required (sk-ant-...).
	APIKey string

	// BaseURL overrides the API endpoint, for proxies.
	BaseURL string

	// DefaultModel is used when requests do not name a model.
	DefaultModel string
}

// Anthropic implements Provider over the official SDK with streaming and
// prompt-cache annotations on the turns the loop marks cache-eligible.
type Anthropic struct {
	client       anthropic.Client
	defaultModel string
}

// NewAnthropic validates the config and builds the provider.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = anthropicDefaultModel
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *Anthropic) Name() string {
	return ProviderAnthropic
}

// Stream sends the request and streams text deltas. The returned channel
// closes when the stream ends; errors arrive as the final chunk.
func (p *Anthropic) Stream(ctx context.Context, req *Request) (<-chan *Chunk, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  p.convertTurns(req.Turns, req.CacheMarks),
		MaxTokens: int64(maxTokensOr(req.MaxTokens, anthropicMaxTokens)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	chunks := make(chan *Chunk)
	go func() {
		defer close(chunks)

		stream := p.client.Messages.NewStreaming(ctx, params)
		var inputTokens, outputTokens int

		for stream.Next() {
			event := stream.Current()
			switch event.Type {
			case "message_start":
				start := event.AsMessageStart()
				inputTokens = int(start.Message.Usage.InputTokens)
			case "content_block_delta":
				delta := event.AsContentBlockDelta().Delta
				if delta.Type == "text_delta" && delta.Text != "" {
					select {
					case chunks <- &Chunk{Text: delta.Text}:
					case <-ctx.Done():
						chunks <- &Chunk{Err: Classify(ProviderAnthropic, model, 0, ctx.Err())}
						return
					}
				}
			case "message_delta":
				md := event.AsMessageDelta()
				if md.Usage.OutputTokens > 0 {
					outputTokens = int(md.Usage.OutputTokens)
				}
			}
		}
		if err := stream.Err(); err != nil {
			chunks <- &Chunk{Err: p.classify(model, err)}
			return
		}
		chunks <- &Chunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
	}()
	return chunks, nil
}

// convertTurns maps conversation turns to Anthropic messages. Turns whose
// index appears in cacheMarks get an ephemeral cache-control annotation on
// their trailing text block.
func (p *Anthropic) convertTurns(turns []models.Turn, cacheMarks []int) []anthropic.MessageParam {
	marked := make(map[int]bool, len(cacheMarks))
	for _, i := range cacheMarks {
		marked[i] = true
	}

	out := make([]anthropic.MessageParam, 0, len(turns))
	for i, turn := range turns {
		if turn.Role == models.RoleSystem {
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if len(turn.Parts) > 0 {
			for _, part := range turn.Parts {
				switch part.Kind {
				case models.PartText:
					if part.Text != "" {
						content = append(content, anthropic.NewTextBlock(part.Text))
					}
				case models.PartImage:
					if block, ok := anthropicImageBlock(part); ok {
						content = append(content, block)
					}
				}
			}
		} else if turn.Content != "" {
			content = append(content, anthropic.NewTextBlock(turn.Content))
		}
		if len(content) == 0 {
			continue
		}

		if marked[i] {
			for j := len(content) - 1; j >= 0; j-- {
				if content[j].OfText != nil {
					content[j].OfText.CacheControl = anthropic.NewCacheControlEphemeralParam()
					break
				}
			}
		}

		if turn.Role == models.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out
}

// anthropicImageBlock converts an image part. Data URIs become base64
// source blocks; remote URLs become URL source blocks.
func anthropicImageBlock(part models.ContentPart) (anthropic.ContentBlockParamUnion, bool) {
	if strings.HasPrefix(part.ImageURL, "data:") {
		header, payload, ok := strings.Cut(part.ImageURL, ",")
		if !ok {
			return anthropic.ContentBlockParamUnion{}, false
		}
		mediaType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		return anthropic.NewImageBlockBase64(mediaType, payload), true
	}
	return anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: part.ImageURL}), true
}

func (p *Anthropic) classify(model string, err error) *Error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return Classify(ProviderAnthropic, model, apiErr.StatusCode, err)
	}
	return Classify(ProviderAnthropic, model, 0, err)
}

func maxTokensOr(requested, fallback int) int {
	if requested > 0 {
		return requested
	}
	return fallback
}
