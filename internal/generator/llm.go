package generator

import (
	"context"
	"errors"
	"io"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// Prompt is one chat completion request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Backend produces a completion for a prompt.
type Backend interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// chatClient is the part of *openai.Client the backend uses.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIBackend talks to an OpenAI-compatible chat completions endpoint.
type OpenAIBackend struct {
	Model  string
	Logger *slog.Logger

	client chatClient
}

// NewOpenAIBackend builds a backend for apiKey. An empty baseURL keeps the
// library default.
func NewOpenAIBackend(apiKey, baseURL, model string, logger *slog.Logger) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIBackend{
		Model:  model,
		Logger: logger,
		client: openai.NewClientWithConfig(cfg),
	}
}

func (b *OpenAIBackend) Complete(ctx context.Context, p Prompt) (string, error) {
	logger := b.logger()
	req := openai.ChatCompletionRequest{
		Model:       b.Model,
		MaxTokens:   p.MaxTokens,
		Temperature: float32(p.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
	}
	logger.Debug("llm request", "model", b.Model, "system", p.System, "user_tokens", EstimateTokens(p.User))

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			logger.Debug("llm api error", "status", apiErr.HTTPStatusCode, "type", apiErr.Type)
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := resp.Choices[0].Message.Content
	logger.Debug("llm response", "content", content, "total_tokens", resp.Usage.TotalTokens)
	return content, nil
}

func (b *OpenAIBackend) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return discardLogger
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
