package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/Contexta/internal/core"
)

// GeminiClient talks to the Gemini API. It implements core.ModelClient and
// tags every failure with a core.CallErrorKind.
type GeminiClient struct {
	client     *genai.Client
	embedModel string
}

func NewGeminiClient(ctx context.Context, apiKey, embedModel string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if embedModel == "" {
		embedModel = "text-embedding-004"
	}
	return &GeminiClient{client: cl, embedModel: embedModel}, nil
}

func (g *GeminiClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Ping resolves the model's metadata so bad credentials or model ids fail at
// startup instead of on the first request.
func (g *GeminiClient) Ping(ctx context.Context, model string) error {
	if _, err := g.client.GenerativeModel(model).Info(ctx); err != nil {
		return fmt.Errorf("gemini model %q: %w", model, err)
	}
	return nil
}

func (g *GeminiClient) GenerateContent(ctx context.Context, model, prompt string) (string, error) {
	m := g.client.GenerativeModel(model)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classify(fmt.Errorf("gemini generate: %w", err))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

func (g *GeminiClient) EmbedContent(ctx context.Context, text string) ([]float32, error) {
	em := g.client.EmbeddingModel(g.embedModel)

	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, classify(fmt.Errorf("gemini embed: %w", err))
	}
	if resp == nil || resp.Embedding == nil {
		return nil, errors.New("gemini embed: empty embedding")
	}
	return resp.Embedding.Values, nil
}

var _ core.ModelClient = (*GeminiClient)(nil)
