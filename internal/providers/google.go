package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"google.golang.org/genai"

	"github.com/haasonsaas/scout/pkg/models"
)

const googleDefaultModel = "gemini-2.0-flash"

// GoogleConfig configures the Gemini provider.
type GoogleConfig struct {
	// APIKey is required.
	APIKey string

	// DefaultModel is used when requests do not name a model.
	DefaultModel string
}

// Google implements Provider over the Gemini API. CacheMarks are ignored;
// Gemini has no per-block cache annotations.
type Google struct {
	client       *genai.Client
	defaultModel string
}

// NewGoogle validates the config and builds the provider.
func NewGoogle(cfg GoogleConfig) (*Google, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("google: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = googleDefaultModel
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, Classify(ProviderGoogle, cfg.DefaultModel, 0, err)
	}
	return &Google{client: client, defaultModel: cfg.DefaultModel}, nil
}

func (p *Google) Name() string {
	return ProviderGoogle
}

func (p *Google) Stream(ctx context.Context, req *Request) (<-chan *Chunk, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	contents := p.convertTurns(req.Turns)
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.MaxTokens > 0 && req.MaxTokens <= int(int32(^uint32(0)>>1)) {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(req.Temperature))
	}

	chunks := make(chan *Chunk)
	go func() {
		defer close(chunks)

		var inputTokens, outputTokens int
		for resp, err := range p.client.Models.GenerateContentStream(ctx, model, contents, config) {
			select {
			case <-ctx.Done():
				chunks <- &Chunk{Err: Classify(ProviderGoogle, model, 0, ctx.Err())}
				return
			default:
			}
			if err != nil {
				chunks <- &Chunk{Err: p.classify(model, err)}
				return
			}
			if resp == nil {
				continue
			}
			if resp.UsageMetadata != nil {
				inputTokens = int(resp.UsageMetadata.PromptTokenCount)
				outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
			}
			for _, candidate := range resp.Candidates {
				if candidate == nil || candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if part == nil || part.Text == "" {
						continue
					}
					select {
					case chunks <- &Chunk{Text: part.Text}:
					case <-ctx.Done():
						chunks <- &Chunk{Err: Classify(ProviderGoogle, model, 0, ctx.Err())}
						return
					}
				}
			}
		}
		chunks <- &Chunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
	}()
	return chunks, nil
}

// convertTurns maps conversation turns to Gemini contents. System turns are
// skipped; the system prompt rides in the generation config.
func (p *Google) convertTurns(turns []models.Turn) []*genai.Content {
	var out []*genai.Content
	for _, turn := range turns {
		if turn.Role == models.RoleSystem {
			continue
		}

		content := &genai.Content{Role: genai.RoleUser}
		if turn.Role == models.RoleAssistant {
			content.Role = genai.RoleModel
		}

		if len(turn.Parts) > 0 {
			for _, part := range turn.Parts {
				switch part.Kind {
				case models.PartText:
					if part.Text != "" {
						content.Parts = append(content.Parts, &genai.Part{Text: part.Text})
					}
				case models.PartImage:
					if gp := googleImagePart(part); gp != nil {
						content.Parts = append(content.Parts, gp)
					}
				}
			}
		} else if turn.Content != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: turn.Content})
		}

		if len(content.Parts) > 0 {
			out = append(out, content)
		}
	}
	return out
}

// googleImagePart converts an image part. Data URIs become inline blobs;
// remote URLs become file data references.
func googleImagePart(part models.ContentPart) *genai.Part {
	if strings.HasPrefix(part.ImageURL, "data:") {
		header, payload, ok := strings.Cut(part.ImageURL, ",")
		if !ok {
			return nil
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil
		}
		mimeType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		return &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}}
	}
	return &genai.Part{FileData: &genai.FileData{FileURI: part.ImageURL, MIMEType: part.MediaType}}
}

func (p *Google) classify(model string, err error) *Error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return Classify(ProviderGoogle, model, apiErr.Code, err)
	}
	return Classify(ProviderGoogle, model, 0, err)
}
