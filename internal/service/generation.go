package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/soapify-health/soapify/internal/domain"
	"github.com/soapify-health/soapify/internal/telemetry"
)

// Retriever fetches prior notes scoped to one (doctor, patient) pair.
type Retriever interface {
	Fetch(ctx context.Context, doctorID, patientID, query string, limit int) (domain.RetrievalResult, error)
}

// Generator invokes the configured LLM backend. It classifies failures as
// GENERATION_TIMEOUT or GENERATION_ERROR and never retries internally.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenerationService runs the retrieval -> prompt -> generation -> validation
// pipeline for one claimed note and persists the terminal outcome. It is
// invoked only by the background worker; any failure becomes
// Note.Status = FAILED with a stored reason code, never an escaped error.
type GenerationService struct {
	noteRepo         NoteRepositoryInterface
	embeddingRepo    NoteEmbeddingRepositoryInterface
	retriever        Retriever
	assembler        *PromptAssembler
	generator        Generator
	validator        *SoapValidator
	embedding        EmbeddingClient
	retrievalLimit   int
	retrievalTimeout time.Duration
}

func NewGenerationService(
	noteRepo NoteRepositoryInterface,
	embeddingRepo NoteEmbeddingRepositoryInterface,
	retriever Retriever,
	generator Generator,
	embedding EmbeddingClient,
	retrievalLimit int,
	retrievalTimeout time.Duration,
) *GenerationService {
	if retrievalLimit <= 0 {
		retrievalLimit = 2
	}
	if retrievalTimeout <= 0 {
		retrievalTimeout = 15 * time.Second
	}
	return &GenerationService{
		noteRepo:         noteRepo,
		embeddingRepo:    embeddingRepo,
		retriever:        retriever,
		assembler:        NewPromptAssembler(),
		generator:        generator,
		validator:        NewSoapValidator(),
		embedding:        embedding,
		retrievalLimit:   retrievalLimit,
		retrievalTimeout: retrievalTimeout,
	}
}

// Process runs the pipeline for noteID. It returns an error only when the
// terminal state could not be persisted; pipeline failures are absorbed into
// Note.Status = FAILED. There are no automatic retries: a rejected or failed
// generation must never silently become a different answer, so a FAILED note
// requires an explicit resubmit by the client.
func (s *GenerationService) Process(ctx context.Context, noteID string) error {
	ctx, span := telemetry.StartSpan(ctx, "GenerationService.Process", telemetry.SpanAttributes{
		NoteID: noteID,
	})
	defer span.End()

	note, err := s.noteRepo.GetByID(ctx, noteID)
	if err != nil {
		return err
	}

	// Terminal notes are final. A job claimed for an already-terminal note
	// (e.g. after a partial crash between note update and job update) must
	// not run the pipeline again.
	if note.Status.IsTerminal() {
		log.Printf("note %s already %s, skipping generation", note.ID, note.Status)
		return nil
	}

	content, pipeErr := s.runPipeline(ctx, note)
	if pipeErr != nil {
		span.SetError(pipeErr)
		log.Printf("note %s pipeline failed: %v", note.ID, pipeErr)
		if err := s.noteRepo.MarkFailed(ctx, note.ID, reasonCode(pipeErr)); err != nil {
			return err
		}
		return nil
	}

	if err := s.noteRepo.MarkCompleted(ctx, note.ID, content); err != nil {
		return err
	}

	s.storeEmbedding(ctx, note, content)

	log.Printf("note %s completed (soap #%d)", note.ID, note.SoapNumber)
	return nil
}

func (s *GenerationService) runPipeline(ctx context.Context, note *domain.Note) (string, error) {
	retrievalCtx, cancel := context.WithTimeout(ctx, s.retrievalTimeout)
	history, err := s.retriever.Fetch(retrievalCtx, note.DoctorID, note.PatientID, note.Transcript, s.retrievalLimit)
	cancel()
	if err != nil {
		return "", err
	}

	prompt := s.assembler.Build(note.Transcript, history)

	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	// Some models preface the note with commentary; everything before the
	// first SUBJECTIVE: header is discarded before validation.
	if idx := strings.Index(raw, "SUBJECTIVE:"); idx > 0 {
		raw = raw[idx:]
	}

	return s.validator.Validate(raw)
}

// storeEmbedding indexes the completed note for future retrieval. The note
// is already terminal at this point, so an unavailable embedding store is
// logged and skipped rather than failing the note.
func (s *GenerationService) storeEmbedding(ctx context.Context, note *domain.Note, content string) {
	vector, err := s.embedding.GenerateEmbedding(ctx, content)
	if err != nil {
		log.Printf("note %s: embedding store skipped: %v", note.ID, err)
		return
	}

	record := &domain.NoteEmbedding{
		NoteID:     note.ID,
		DoctorID:   note.DoctorID,
		PatientID:  note.PatientID,
		SoapNumber: note.SoapNumber,
		Content:    content,
		Embedding:  vector,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.embeddingRepo.Create(ctx, record); err != nil {
		log.Printf("note %s: embedding store skipped: %v", note.ID, err)
	}
}

// reasonCode maps a pipeline error to the audit code stored on the note.
func reasonCode(err error) string {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return domain.ErrCodeInternalError
}
