package providers

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/scout/pkg/models"
)

const openaiDefaultModel = "gpt-4o"

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	// APIKey is required.
	APIKey string

	// BaseURL overrides the API endpoint, for Azure or compatible gateways.
	BaseURL string

	// DefaultModel is used when requests do not name a model.
	DefaultModel string
}

// OpenAI implements Provider over the chat completions streaming API.
// CacheMarks are ignored; OpenAI caches prompts server-side without
// per-block annotations.
type OpenAI struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAI validates the config and builds the provider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = openaiDefaultModel
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *OpenAI) Name() string {
	return ProviderOpenAI
}

func (p *OpenAI) Stream(ctx context.Context, req *Request) (<-chan *Chunk, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	params := openai.ChatCompletionRequest{
		Model:    model,
		Messages: p.convertTurns(req.System, req.Turns),
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		params.Temperature = float32(req.Temperature)
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, params)
	if err != nil {
		return nil, p.classify(model, err)
	}

	chunks := make(chan *Chunk)
	go func() {
		defer close(chunks)
		defer stream.Close()

		var inputTokens, outputTokens int
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				chunks <- &Chunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
				return
			}
			if err != nil {
				chunks <- &Chunk{Err: p.classify(model, err)}
				return
			}
			if resp.Usage != nil {
				inputTokens = resp.Usage.PromptTokens
				outputTokens = resp.Usage.CompletionTokens
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if text := resp.Choices[0].Delta.Content; text != "" {
				select {
				case chunks <- &Chunk{Text: text}:
				case <-ctx.Done():
					chunks <- &Chunk{Err: Classify(ProviderOpenAI, model, 0, ctx.Err())}
					return
				}
			}
		}
	}()
	return chunks, nil
}

// convertTurns maps conversation turns to chat messages. The system prompt
// leads as a system message; image parts become multi-part user content.
func (p *OpenAI) convertTurns(system string, turns []models.Turn) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, turn := range turns {
		role := openai.ChatMessageRoleUser
		if turn.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		} else if turn.Role == models.RoleSystem {
			role = openai.ChatMessageRoleSystem
		}

		if turn.HasImages() {
			var mc []openai.ChatMessagePart
			for _, part := range turn.Parts {
				switch part.Kind {
				case models.PartText:
					if part.Text != "" {
						mc = append(mc, openai.ChatMessagePart{
							Type: openai.ChatMessagePartTypeText,
							Text: part.Text,
						})
					}
				case models.PartImage:
					mc = append(mc, openai.ChatMessagePart{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: part.ImageURL},
					})
				}
			}
			out = append(out, openai.ChatCompletionMessage{Role: role, MultiContent: mc})
			continue
		}

		if text := turn.Text(); text != "" {
			out = append(out, openai.ChatCompletionMessage{Role: role, Content: text})
		}
	}
	return out
}

func (p *OpenAI) classify(model string, err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return Classify(ProviderOpenAI, model, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return Classify(ProviderOpenAI, model, reqErr.HTTPStatusCode, err)
	}
	return Classify(ProviderOpenAI, model, 0, err)
}
