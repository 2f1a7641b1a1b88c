// Package llm abstracts the generation backend behind a single-method
// capability: accept a text prompt, return text. Any compliant backend is
// substitutable without touching the pipeline.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/soapify-health/soapify/internal/domain"
)

// Generator is the capability interface implemented by every backend.
// One request, one response, no internal retries: whether to retry a
// clinical-note generation is a content decision owned by the orchestrator,
// never a transport one.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Gateway wraps a backend with uniform timeout and error semantics.
type Gateway struct {
	backend Generator
	timeout time.Duration
}

func NewGateway(backend Generator, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Gateway{backend: backend, timeout: timeout}
}

// Generate invokes the backend with the gateway's timeout. Deadline
// expiration maps to GENERATION_TIMEOUT, every other backend failure to
// GENERATION_ERROR.
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.backend.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeGenerationTimeout, "model generation timed out", err)
		}
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeGenerationError, "model generation failed", err)
	}

	return text, nil
}
