package llm

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// OllamaBackend generates text through a local Ollama server.
type OllamaBackend struct {
	client *resty.Client
	model  string
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func NewOllamaBackend(baseURL, model string) *OllamaBackend {
	return &OllamaBackend{
		client: resty.New().SetBaseURL(baseURL),
		model:  model,
	}
}

func (b *OllamaBackend) Generate(ctx context.Context, prompt string) (string, error) {
	var out ollamaGenerateResponse

	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(ollamaGenerateRequest{
			Model:  b.model,
			Prompt: prompt,
			Stream: false,
			Options: map[string]any{
				"temperature": 0.0,
				"num_ctx":     2048,
			},
		}).
		SetResult(&out).
		Post("/api/generate")
	if err != nil {
		return "", err
	}

	if resp.IsError() {
		return "", fmt.Errorf("ollama returned %s: %s", resp.Status(), resp.String())
	}

	return out.Response, nil
}
