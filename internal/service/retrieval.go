package service

import (
	"context"

	"github.com/soapify-health/soapify/internal/domain"
	"github.com/soapify-health/soapify/internal/telemetry"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// NoteEmbeddingRepositoryInterface defines the vector index over prior notes.
// Search is always scoped by (doctorID, patientID); there is no unscoped
// variant by construction.
type NoteEmbeddingRepositoryInterface interface {
	Create(ctx context.Context, e *domain.NoteEmbedding) error
	SearchByPatient(ctx context.Context, doctorID, patientID string, embedding []float32, limit int) (domain.RetrievalResult, error)
}

// RetrievalService selects prior COMPLETED notes for one (doctor, patient)
// pair, ranked by similarity to the new transcript.
type RetrievalService struct {
	embedding EmbeddingClient
	repo      NoteEmbeddingRepositoryInterface
}

func NewRetrievalService(embedding EmbeddingClient, repo NoteEmbeddingRepositoryInterface) *RetrievalService {
	return &RetrievalService{
		embedding: embedding,
		repo:      repo,
	}
}

// Fetch returns up to limit prior notes for the pair, most similar first,
// ties broken by most-recent soap number. No prior notes is an empty result,
// not an error. An unreachable embedding backend is RETRIEVAL_UNAVAILABLE:
// the pipeline must fail loudly rather than generate with silently missing
// context.
func (s *RetrievalService) Fetch(ctx context.Context, doctorID, patientID, query string, limit int) (domain.RetrievalResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Fetch", telemetry.SpanAttributes{
		DoctorID:  doctorID,
		PatientID: patientID,
	})
	defer span.End()

	if limit <= 0 {
		limit = 2
	}

	vector, err := s.embedding.GenerateEmbedding(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeRetrievalUnavailable, "failed to embed query", err)
	}

	result, err := s.repo.SearchByPatient(ctx, doctorID, patientID, vector, limit)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeRetrievalUnavailable, "vector search failed", err)
	}

	if result == nil {
		result = domain.RetrievalResult{}
	}
	return result, nil
}
