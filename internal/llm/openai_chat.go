package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// ErrNoChoices is returned when the provider responds without any completion.
var ErrNoChoices = errors.New("no completion choices returned")

// ChatAPI defines the provider call surface, narrowed for testing.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIChatBackend generates text through any OpenAI-compatible chat
// completions API. Groq and OpenAI differ only in base URL and key.
type OpenAIChatBackend struct {
	api   ChatAPI
	model string
}

// NewOpenAIChatBackend creates a backend against the given endpoint.
// Pass baseURL == "" for api.openai.com.
func NewOpenAIChatBackend(apiKey, baseURL, model string) *OpenAIChatBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIChatBackend{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}
}

// NewGroqBackend creates a backend against Groq's OpenAI-compatible API.
func NewGroqBackend(apiKey, model string) *OpenAIChatBackend {
	return NewOpenAIChatBackend(apiKey, GroqBaseURL, model)
}

// Generate sends the prompt as a single user message at temperature zero:
// note generation must be as deterministic as the provider allows.
func (b *OpenAIChatBackend) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := b.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return resp.Choices[0].Message.Content, nil
}
