package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/soapify-health/soapify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRetriever is a mock implementation of Retriever
type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Fetch(ctx context.Context, doctorID, patientID, query string, limit int) (domain.RetrievalResult, error) {
	args := m.Called(ctx, doctorID, patientID, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.RetrievalResult), args.Error(1)
}

// MockGenerator is a mock implementation of Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// MockEmbeddingClient is a mock implementation of EmbeddingClient
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockNoteEmbeddingRepository is a mock implementation of NoteEmbeddingRepositoryInterface
type MockNoteEmbeddingRepository struct {
	mock.Mock
}

func (m *MockNoteEmbeddingRepository) Create(ctx context.Context, e *domain.NoteEmbedding) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockNoteEmbeddingRepository) SearchByPatient(ctx context.Context, doctorID, patientID string, embedding []float32, limit int) (domain.RetrievalResult, error) {
	args := m.Called(ctx, doctorID, patientID, embedding, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.RetrievalResult), args.Error(1)
}

func processingNote() *domain.Note {
	return &domain.Note{
		ID:         "note-1",
		DoctorID:   "doctor-1",
		PatientID:  "patient-1",
		SoapNumber: 3,
		Transcript: "Patient: dry cough for 2 days.",
		Status:     domain.NoteStatusProcessing,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func newGenerationServiceForTest(
	noteRepo *MockNoteRepository,
	embeddingRepo *MockNoteEmbeddingRepository,
	retriever *MockRetriever,
	generator *MockGenerator,
	embedding *MockEmbeddingClient,
) *GenerationService {
	return NewGenerationService(noteRepo, embeddingRepo, retriever, generator, embedding, 2, time.Second)
}

func TestGenerationService_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("first visit with empty retrieval completes", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		embeddingRepo := new(MockNoteEmbeddingRepository)
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		embeddingClient := new(MockEmbeddingClient)
		svc := newGenerationServiceForTest(noteRepo, embeddingRepo, retriever, generator, embeddingClient)

		note := processingNote()
		noteRepo.On("GetByID", mock.Anything, "note-1").Return(note, nil)
		retriever.On("Fetch", mock.Anything, "doctor-1", "patient-1", note.Transcript, 2).
			Return(domain.RetrievalResult{}, nil)

		generator.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
			return strings.Contains(prompt, noHistoryPlaceholder) &&
				strings.Contains(prompt, note.Transcript)
		})).Return(validSoapNote, nil)

		noteRepo.On("MarkCompleted", mock.Anything, "note-1", validSoapNote).Return(nil)
		embeddingClient.On("GenerateEmbedding", mock.Anything, validSoapNote).Return(make([]float32, 1536), nil)
		embeddingRepo.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.NoteEmbedding) bool {
			return e.NoteID == "note-1" && e.DoctorID == "doctor-1" && e.PatientID == "patient-1" && e.SoapNumber == 3
		})).Return(nil)

		err := svc.Process(ctx, "note-1")
		require.NoError(t, err)

		noteRepo.AssertExpectations(t)
		embeddingRepo.AssertExpectations(t)
	})

	t.Run("strips model preface before the first SUBJECTIVE header", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		embeddingRepo := new(MockNoteEmbeddingRepository)
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		embeddingClient := new(MockEmbeddingClient)
		svc := newGenerationServiceForTest(noteRepo, embeddingRepo, retriever, generator, embeddingClient)

		noteRepo.On("GetByID", mock.Anything, "note-1").Return(processingNote(), nil)
		retriever.On("Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(domain.RetrievalResult{}, nil)
		generator.On("Generate", mock.Anything, mock.Anything).
			Return("Sure, here is the note:\n"+validSoapNote, nil)

		noteRepo.On("MarkCompleted", mock.Anything, "note-1", validSoapNote).Return(nil)
		embeddingClient.On("GenerateEmbedding", mock.Anything, validSoapNote).Return(make([]float32, 1536), nil)
		embeddingRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

		err := svc.Process(ctx, "note-1")
		require.NoError(t, err)
		noteRepo.AssertExpectations(t)
	})

	t.Run("generation timeout fails the note with its reason code", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		embeddingRepo := new(MockNoteEmbeddingRepository)
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		embeddingClient := new(MockEmbeddingClient)
		svc := newGenerationServiceForTest(noteRepo, embeddingRepo, retriever, generator, embeddingClient)

		noteRepo.On("GetByID", mock.Anything, "note-1").Return(processingNote(), nil)
		retriever.On("Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(domain.RetrievalResult{}, nil)
		generator.On("Generate", mock.Anything, mock.Anything).
			Return("", domain.NewDomainErrorWithCause(domain.ErrCodeGenerationTimeout, "model generation timed out", context.DeadlineExceeded))

		noteRepo.On("MarkFailed", mock.Anything, "note-1", domain.ErrCodeGenerationTimeout).Return(nil)

		err := svc.Process(ctx, "note-1")
		require.NoError(t, err)

		noteRepo.AssertExpectations(t)
		noteRepo.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything)
		embeddingRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("malformed output fails the note with a validation code", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		embeddingRepo := new(MockNoteEmbeddingRepository)
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		embeddingClient := new(MockEmbeddingClient)
		svc := newGenerationServiceForTest(noteRepo, embeddingRepo, retriever, generator, embeddingClient)

		noteRepo.On("GetByID", mock.Anything, "note-1").Return(processingNote(), nil)
		retriever.On("Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(domain.RetrievalResult{}, nil)
		generator.On("Generate", mock.Anything, mock.Anything).
			Return("SUBJECTIVE: cough.\nASSESSMENT: viral.\nPLAN: rest.", nil)

		noteRepo.On("MarkFailed", mock.Anything, "note-1", domain.ErrCodeValidation).Return(nil)

		err := svc.Process(ctx, "note-1")
		require.NoError(t, err)

		noteRepo.AssertExpectations(t)
		noteRepo.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unreachable retrieval fails the note without generating", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		embeddingRepo := new(MockNoteEmbeddingRepository)
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		embeddingClient := new(MockEmbeddingClient)
		svc := newGenerationServiceForTest(noteRepo, embeddingRepo, retriever, generator, embeddingClient)

		noteRepo.On("GetByID", mock.Anything, "note-1").Return(processingNote(), nil)
		retriever.On("Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, domain.NewDomainErrorWithCause(domain.ErrCodeRetrievalUnavailable, "vector search failed", errors.New("connection refused")))

		noteRepo.On("MarkFailed", mock.Anything, "note-1", domain.ErrCodeRetrievalUnavailable).Return(nil)

		err := svc.Process(ctx, "note-1")
		require.NoError(t, err)

		noteRepo.AssertExpectations(t)
		generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("terminal note is never reprocessed", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		embeddingRepo := new(MockNoteEmbeddingRepository)
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		embeddingClient := new(MockEmbeddingClient)
		svc := newGenerationServiceForTest(noteRepo, embeddingRepo, retriever, generator, embeddingClient)

		done := processingNote()
		done.Status = domain.NoteStatusCompleted
		noteRepo.On("GetByID", mock.Anything, "note-1").Return(done, nil)

		err := svc.Process(ctx, "note-1")
		require.NoError(t, err)

		retriever.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
		noteRepo.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything)
		noteRepo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("embedding store failure after completion is absorbed", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		embeddingRepo := new(MockNoteEmbeddingRepository)
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		embeddingClient := new(MockEmbeddingClient)
		svc := newGenerationServiceForTest(noteRepo, embeddingRepo, retriever, generator, embeddingClient)

		noteRepo.On("GetByID", mock.Anything, "note-1").Return(processingNote(), nil)
		retriever.On("Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(domain.RetrievalResult{}, nil)
		generator.On("Generate", mock.Anything, mock.Anything).Return(validSoapNote, nil)
		noteRepo.On("MarkCompleted", mock.Anything, "note-1", validSoapNote).Return(nil)
		embeddingClient.On("GenerateEmbedding", mock.Anything, validSoapNote).
			Return(nil, errors.New("embeddings api down"))

		err := svc.Process(ctx, "note-1")
		assert.NoError(t, err)
		embeddingRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("returns error when terminal state cannot be persisted", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		embeddingRepo := new(MockNoteEmbeddingRepository)
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		embeddingClient := new(MockEmbeddingClient)
		svc := newGenerationServiceForTest(noteRepo, embeddingRepo, retriever, generator, embeddingClient)

		noteRepo.On("GetByID", mock.Anything, "note-1").Return(processingNote(), nil)
		retriever.On("Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(domain.RetrievalResult{}, nil)
		generator.On("Generate", mock.Anything, mock.Anything).Return(validSoapNote, nil)
		noteRepo.On("MarkCompleted", mock.Anything, "note-1", validSoapNote).Return(errors.New("connection reset"))

		err := svc.Process(ctx, "note-1")
		assert.Error(t, err)
	})

	t.Run("retrieved history is rendered into the prompt", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		embeddingRepo := new(MockNoteEmbeddingRepository)
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		embeddingClient := new(MockEmbeddingClient)
		svc := newGenerationServiceForTest(noteRepo, embeddingRepo, retriever, generator, embeddingClient)

		noteRepo.On("GetByID", mock.Anything, "note-1").Return(processingNote(), nil)
		history := domain.RetrievalResult{
			{NoteID: "old-1", SoapNumber: 2, Date: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), Content: "SUBJECTIVE: wheezing episode"},
		}
		retriever.On("Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(history, nil)

		generator.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
			return strings.Contains(prompt, "[PRIOR VISIT #2 - 2026-02-01]") &&
				strings.Contains(prompt, "wheezing episode")
		})).Return(validSoapNote, nil)

		noteRepo.On("MarkCompleted", mock.Anything, "note-1", validSoapNote).Return(nil)
		embeddingClient.On("GenerateEmbedding", mock.Anything, validSoapNote).Return(make([]float32, 1536), nil)
		embeddingRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

		err := svc.Process(ctx, "note-1")
		require.NoError(t, err)
		generator.AssertExpectations(t)
	})
}
