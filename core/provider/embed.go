package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/mudler/xlog"
	"github.com/sashabaranov/go-openai"
)

// Embed returns an embedding vector for the text. A non-OpenAI backend that
// fails falls back once to the default backend when OPENAI_API_KEY is set.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := embedWith(ctx, c.oai, c.embeddingModel, text)
	if err == nil {
		return vec, nil
	}

	if !c.usesResponses() {
		if fb := c.fallbackClient(); fb != nil {
			xlog.Warn("Embedding failed, falling back to default backend", "error", err)
			if vec, fbErr := embedWith(ctx, fb, c.embeddingModel, text); fbErr == nil {
				return vec, nil
			}
		}
	}

	return nil, err
}

func (c *Client) fallbackClient() *openai.Client {
	if c.fallback != nil {
		return c.fallback
	}
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil
	}
	c.fallback = openai.NewClient(key)
	return c.fallback
}

func embedWith(ctx context.Context, client *openai.Client, model, text string) ([]float64, error) {
	resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float64, len(raw))
	for i, v := range raw {
		vec[i] = float64(v)
	}
	return vec, nil
}
