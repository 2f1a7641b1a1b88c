// Package embedding wraps the OpenAI embeddings API used to index note
// content for per-patient retrieval.
package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel is the OpenAI model used for generating embeddings
	DefaultModel = openai.AdaEmbeddingV2
	// DefaultDimensions is the expected dimension of embeddings from ada-002
	DefaultDimensions = 1536
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
)

// API defines the interface for embedding generation
type API interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
}

// Client wraps the OpenAI embeddings API with a dimension guard.
type Client struct {
	api        API
	dimensions int
}

type openAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func newOpenAIAdapter(apiKey string, model openai.EmbeddingModel) *openAIAdapter {
	if model == "" {
		model = DefaultModel
	}
	return &openAIAdapter{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *openAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// NewClient creates a new embeddings client using defaults.
func NewClient(apiKey string) *Client {
	return &Client{
		api:        newOpenAIAdapter(apiKey, DefaultModel),
		dimensions: DefaultDimensions,
	}
}

// NewClientWithAPI creates a client over a custom API implementation (for testing).
func NewClientWithAPI(api API, dimensions int) *Client {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Client{api: api, dimensions: dimensions}
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	vector, err := c.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(vector) != c.dimensions {
		return nil, ErrWrongDimensions
	}

	return vector, nil
}
