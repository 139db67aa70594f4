// Package genai provides OpenAI-backed chat completion and embedding
// operations for leadline.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Model and completion bounds for generated replies. The reply call is
// bounded in length and uses a fixed temperature.
const (
	chatModel           = openai.ChatModelGPT4
	embeddingModel      = openai.EmbeddingModelTextEmbeddingAda002
	maxResponseTokens   = 500
	responseTemperature = 0.7
)

// EmbeddingDimensions is the dimensionality of vectors produced by the
// embedding model.
const EmbeddingDimensions = 1536

// Error variables for better error handling and testability
var (
	ErrAPIKeyNotSet        = errors.New("OPENAI_API_KEY not set")
	ErrNoChoicesReturned   = errors.New("no choices returned")
	ErrNoEmbeddingReturned = errors.New("no embedding returned")
)

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// embeddingService defines the minimal interface for embeddings.
type embeddingService interface {
	New(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error)
}

// chatCompletions adapts the OpenAI SDK service to chatService.
type chatCompletions struct {
	svc openai.ChatCompletionService
}

func (c chatCompletions) New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.svc.New(ctx, params)
}

// embeddings adapts the OpenAI SDK service to embeddingService.
type embeddings struct {
	svc openai.EmbeddingService
}

func (e embeddings) New(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error) {
	return e.svc.New(ctx, params)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key, overriding the environment.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// Client wraps the OpenAI chat completion and embedding services.
type Client struct {
	chat       chatService
	embeddings embeddingService
}

// NewClient initializes a new GenAI client. The API key is taken from
// options or the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	slog.Debug("genai.NewClient: client initialized", "chat_model", chatModel, "embedding_model", embeddingModel)
	return &Client{
		chat:       chatCompletions{svc: cli.Chat.Completions},
		embeddings: embeddings{svc: cli.Embeddings},
	}, nil
}

// GenerateResponse generates a bounded-length completion from a system
// instruction and a user turn.
func (c *Client) GenerateResponse(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: chatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens:   openai.Int(maxResponseTokens),
		Temperature: openai.Float(responseTemperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// EmbedText returns the embedding vector for the given text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: embeddingModel,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrNoEmbeddingReturned
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
