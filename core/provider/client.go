// Package provider is the single abstraction over "get a reasoning
// response" and "get an embedding". It hides two wire protocols: the
// structured responses protocol used by the openai provider, and the
// chat-completions protocol used by everything else (OpenRouter, Ollama,
// any OpenAI-compatible endpoint).
package provider

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/SargassoLLC/anemone/core/types"
)

// Provider names.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderCustom     = "custom"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"

	// shortCallTokens caps the importance-scoring and reflection calls.
	shortCallTokens = 300
)

// Client implements the provider adapter.
type Client struct {
	provider       string
	model          string
	embeddingModel string
	apiKey         string
	baseURL        string

	oai      *openai.Client
	fallback *openai.Client
	httpc    *http.Client
	retry    RetryPolicy
}

type Option func(*Client)

func WithProvider(name string) Option {
	return func(c *Client) { c.provider = name }
}

func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

func WithEmbeddingModel(model string) Option {
	return func(c *Client) { c.embeddingModel = model }
}

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// New builds a client. The base URL defaults per provider; the API key
// falls back to OPENAI_API_KEY.
func New(opts ...Option) *Client {
	c := &Client{
		provider:       ProviderOpenAI,
		model:          "gpt-4.1",
		embeddingModel: "text-embedding-3-small",
		retry:          DefaultRetryPolicy,
		httpc:          &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.baseURL == "" {
		switch c.provider {
		case ProviderOpenRouter:
			c.baseURL = openRouterBaseURL
		default:
			c.baseURL = defaultBaseURL
		}
	}

	key := c.apiKey
	if key == "" {
		// Local OpenAI-compatible servers accept any bearer token.
		key = "ollama"
	}
	cfg := openai.DefaultConfig(key)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.httpc
	c.oai = openai.NewClientWithConfig(cfg)

	return c
}

// usesResponses reports whether this client speaks the structured protocol.
func (c *Client) usesResponses() bool {
	return c.provider == ProviderOpenAI
}

// Chat issues one reasoning call. The input list and the Output items of
// the returned response share one representation so tool loops can replay
// outputs into the next request verbatim.
func (c *Client) Chat(ctx context.Context, input []types.Item, useTools bool, instructions string, maxTokens int) (*types.LlmResponse, error) {
	if c.usesResponses() {
		return c.chatResponses(ctx, input, useTools, instructions, maxTokens)
	}
	return c.chatCompletions(ctx, input, useTools, instructions, maxTokens)
}

// ChatShort issues a small tool-free call and returns only the text. Used
// for importance scoring and reflection summaries.
func (c *Client) ChatShort(ctx context.Context, input []types.Item, instructions string) (string, error) {
	resp, err := c.Chat(ctx, input, false, instructions, shortCallTokens)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
