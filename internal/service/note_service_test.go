package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soapify-health/soapify/internal/domain"
	"github.com/soapify-health/soapify/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockNoteRepository is a mock implementation of NoteRepositoryInterface
type MockNoteRepository struct {
	mock.Mock
}

func (m *MockNoteRepository) Create(ctx context.Context, n *domain.Note) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNoteRepository) GetByID(ctx context.Context, id string) (*domain.Note, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Note), args.Error(1)
}

func (m *MockNoteRepository) GetForDoctor(ctx context.Context, id, doctorID string) (*domain.Note, error) {
	args := m.Called(ctx, id, doctorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Note), args.Error(1)
}

func (m *MockNoteRepository) ListByDoctorWithCursor(ctx context.Context, doctorID string, cursor *pagination.Cursor, limit int) (*NotePageResult, error) {
	args := m.Called(ctx, doctorID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*NotePageResult), args.Error(1)
}

func (m *MockNoteRepository) HistoryByPatient(ctx context.Context, doctorID, patientID string) (domain.RetrievalResult, error) {
	args := m.Called(ctx, doctorID, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.RetrievalResult), args.Error(1)
}

func (m *MockNoteRepository) MarkCompleted(ctx context.Context, id, content string) error {
	args := m.Called(ctx, id, content)
	return args.Error(0)
}

func (m *MockNoteRepository) MarkFailed(ctx context.Context, id, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockNoteRepository) UpdateContent(ctx context.Context, id, doctorID, content string) error {
	args := m.Called(ctx, id, doctorID, content)
	return args.Error(0)
}

// MockGenerationJobRepository is a mock implementation of GenerationJobRepositoryInterface
type MockGenerationJobRepository struct {
	mock.Mock
}

func (m *MockGenerationJobRepository) Create(ctx context.Context, job *domain.GenerationJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockPatientRepository is a mock implementation of PatientRepositoryInterface
type MockPatientRepository struct {
	mock.Mock
}

func (m *MockPatientRepository) Create(ctx context.Context, p *domain.Patient) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPatientRepository) GetForDoctor(ctx context.Context, id, doctorID string) (*domain.Patient, error) {
	args := m.Called(ctx, id, doctorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Patient), args.Error(1)
}

func (m *MockPatientRepository) ListByDoctor(ctx context.Context, doctorID string) ([]*domain.Patient, error) {
	args := m.Called(ctx, doctorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Patient), args.Error(1)
}

// MockUUIDGenerator returns a fixed sequence of IDs
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}

func newNoteServiceForTest(
	noteRepo *MockNoteRepository,
	jobRepo *MockGenerationJobRepository,
	patientRepo *MockPatientRepository,
	uuids ...string,
) *NoteService {
	txRunner := &testTxRunner{repos: &testTxRepos{notes: noteRepo, generationJobs: jobRepo}}
	return NewNoteServiceWithUUIDGen(noteRepo, jobRepo, patientRepo, txRunner, NewMockUUIDGenerator(uuids...))
}

func ownedPatient(patientID, doctorID string) *domain.Patient {
	return &domain.Patient{
		ID:        patientID,
		DoctorID:  doctorID,
		Name:      "Jane Doe",
		Age:       42,
		CreatedAt: time.Now().UTC(),
	}
}

func TestNoteService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("creates PROCESSING note and schedules job in one transaction", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		jobRepo := new(MockGenerationJobRepository)
		patientRepo := new(MockPatientRepository)
		svc := newNoteServiceForTest(noteRepo, jobRepo, patientRepo, "note-1", "job-1")

		patientRepo.On("GetForDoctor", mock.Anything, "patient-1", "doctor-1").Return(ownedPatient("patient-1", "doctor-1"), nil)

		noteRepo.On("Create", mock.Anything, mock.MatchedBy(func(n *domain.Note) bool {
			return n.ID == "note-1" &&
				n.DoctorID == "doctor-1" &&
				n.PatientID == "patient-1" &&
				n.Status == domain.NoteStatusProcessing &&
				n.Content == nil
		})).Return(nil)

		jobRepo.On("Create", mock.Anything, mock.MatchedBy(func(j *domain.GenerationJob) bool {
			return j.ID == "job-1" &&
				j.NoteID == "note-1" &&
				j.Status == domain.GenerationJobStatusPending &&
				j.Retries == 0
		})).Return(nil)

		note, err := svc.Submit(ctx, SubmitInput{
			DoctorID:   "doctor-1",
			PatientID:  "patient-1",
			Transcript: "Patient complains of dry cough for 2 days.",
		})

		require.NoError(t, err)
		assert.Equal(t, "note-1", note.ID)
		assert.Equal(t, domain.NoteStatusProcessing, note.Status)

		noteRepo.AssertExpectations(t)
		jobRepo.AssertExpectations(t)
		patientRepo.AssertExpectations(t)
	})

	t.Run("sanitizes transcript before persisting", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		jobRepo := new(MockGenerationJobRepository)
		patientRepo := new(MockPatientRepository)
		svc := newNoteServiceForTest(noteRepo, jobRepo, patientRepo, "note-1", "job-1")

		patientRepo.On("GetForDoctor", mock.Anything, "patient-1", "doctor-1").Return(ownedPatient("patient-1", "doctor-1"), nil)
		noteRepo.On("Create", mock.Anything, mock.MatchedBy(func(n *domain.Note) bool {
			return n.Transcript == "Patient: complains of cough.\nDoctor: any fever?"
		})).Return(nil)
		jobRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

		_, err := svc.Submit(ctx, SubmitInput{
			DoctorID:   "doctor-1",
			PatientID:  "patient-1",
			Transcript: "  Pt: complains   of cough.\r\n\r\n\r\nDr: any fever?  ",
		})

		require.NoError(t, err)
		noteRepo.AssertExpectations(t)
	})

	t.Run("rejects empty transcript without touching storage", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		jobRepo := new(MockGenerationJobRepository)
		patientRepo := new(MockPatientRepository)
		svc := newNoteServiceForTest(noteRepo, jobRepo, patientRepo)

		_, err := svc.Submit(ctx, SubmitInput{
			DoctorID:   "doctor-1",
			PatientID:  "patient-1",
			Transcript: "   \n\t  ",
		})

		assert.ErrorIs(t, err, domain.ErrEmptyTranscript)
		noteRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		jobRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects submission for another doctor's patient", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		jobRepo := new(MockGenerationJobRepository)
		patientRepo := new(MockPatientRepository)
		svc := newNoteServiceForTest(noteRepo, jobRepo, patientRepo)

		patientRepo.On("GetForDoctor", mock.Anything, "patient-1", "doctor-2").Return(nil, domain.ErrPatientNotFound)

		_, err := svc.Submit(ctx, SubmitInput{
			DoctorID:   "doctor-2",
			PatientID:  "patient-1",
			Transcript: "Patient complains of cough.",
		})

		assert.ErrorIs(t, err, domain.ErrPatientNotFound)
		noteRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("wraps transaction failure as internal error", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		jobRepo := new(MockGenerationJobRepository)
		patientRepo := new(MockPatientRepository)
		svc := newNoteServiceForTest(noteRepo, jobRepo, patientRepo, "note-1", "job-1")

		patientRepo.On("GetForDoctor", mock.Anything, "patient-1", "doctor-1").Return(ownedPatient("patient-1", "doctor-1"), nil)
		noteRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

		_, err := svc.Submit(ctx, SubmitInput{
			DoctorID:   "doctor-1",
			PatientID:  "patient-1",
			Transcript: "Patient complains of cough.",
		})

		require.Error(t, err)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeInternalError, domainErr.Code)
	})
}

func TestNoteService_GetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the doctor's own note", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		svc := newNoteServiceForTest(noteRepo, new(MockGenerationJobRepository), new(MockPatientRepository))

		expected := &domain.Note{ID: "note-1", DoctorID: "doctor-1", Status: domain.NoteStatusCompleted}
		noteRepo.On("GetForDoctor", mock.Anything, "note-1", "doctor-1").Return(expected, nil)

		note, err := svc.GetStatus(ctx, "note-1", "doctor-1")
		require.NoError(t, err)
		assert.Equal(t, expected, note)
	})

	t.Run("foreign note reads as not found", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		svc := newNoteServiceForTest(noteRepo, new(MockGenerationJobRepository), new(MockPatientRepository))

		noteRepo.On("GetForDoctor", mock.Anything, "note-1", "doctor-2").Return(nil, domain.ErrNoteNotFound)

		_, err := svc.GetStatus(ctx, "note-1", "doctor-2")
		assert.ErrorIs(t, err, domain.ErrNoteNotFound)
	})
}

func TestNoteService_UpdateContent(t *testing.T) {
	ctx := context.Background()

	t.Run("updates content of a terminal note", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		svc := newNoteServiceForTest(noteRepo, new(MockGenerationJobRepository), new(MockPatientRepository))

		existing := &domain.Note{ID: "note-1", DoctorID: "doctor-1", Status: domain.NoteStatusCompleted}
		noteRepo.On("GetForDoctor", mock.Anything, "note-1", "doctor-1").Return(existing, nil)
		noteRepo.On("UpdateContent", mock.Anything, "note-1", "doctor-1", "edited note").Return(nil)

		note, err := svc.UpdateContent(ctx, "note-1", "doctor-1", "edited note")
		require.NoError(t, err)
		require.NotNil(t, note.Content)
		assert.Equal(t, "edited note", *note.Content)
		assert.Equal(t, domain.NoteStatusCompleted, note.Status)
	})

	t.Run("rejects edit while note is processing", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		svc := newNoteServiceForTest(noteRepo, new(MockGenerationJobRepository), new(MockPatientRepository))

		existing := &domain.Note{ID: "note-1", DoctorID: "doctor-1", Status: domain.NoteStatusProcessing}
		noteRepo.On("GetForDoctor", mock.Anything, "note-1", "doctor-1").Return(existing, nil)

		_, err := svc.UpdateContent(ctx, "note-1", "doctor-1", "edited note")
		assert.ErrorIs(t, err, domain.ErrNoteNotTerminal)
		noteRepo.AssertNotCalled(t, "UpdateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects empty replacement content", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		svc := newNoteServiceForTest(noteRepo, new(MockGenerationJobRepository), new(MockPatientRepository))

		existing := &domain.Note{ID: "note-1", DoctorID: "doctor-1", Status: domain.NoteStatusFailed}
		noteRepo.On("GetForDoctor", mock.Anything, "note-1", "doctor-1").Return(existing, nil)

		_, err := svc.UpdateContent(ctx, "note-1", "doctor-1", "  ")
		require.Error(t, err)
	})
}

func TestNoteService_GetHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("returns completed notes for an owned patient", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		patientRepo := new(MockPatientRepository)
		svc := newNoteServiceForTest(noteRepo, new(MockGenerationJobRepository), patientRepo)

		patientRepo.On("GetForDoctor", mock.Anything, "patient-1", "doctor-1").Return(ownedPatient("patient-1", "doctor-1"), nil)
		history := domain.RetrievalResult{{NoteID: "note-1", SoapNumber: 1, Content: "SUBJECTIVE: cough"}}
		noteRepo.On("HistoryByPatient", mock.Anything, "doctor-1", "patient-1").Return(history, nil)

		result, err := svc.GetHistory(ctx, "doctor-1", "patient-1")
		require.NoError(t, err)
		assert.Len(t, result, 1)
	})

	t.Run("rejects history for a foreign patient", func(t *testing.T) {
		noteRepo := new(MockNoteRepository)
		patientRepo := new(MockPatientRepository)
		svc := newNoteServiceForTest(noteRepo, new(MockGenerationJobRepository), patientRepo)

		patientRepo.On("GetForDoctor", mock.Anything, "patient-1", "doctor-2").Return(nil, domain.ErrPatientNotFound)

		_, err := svc.GetHistory(ctx, "doctor-2", "patient-1")
		assert.ErrorIs(t, err, domain.ErrPatientNotFound)
		noteRepo.AssertNotCalled(t, "HistoryByPatient", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestNoteService_CreatePatient(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a doctor scoped patient", func(t *testing.T) {
		patientRepo := new(MockPatientRepository)
		svc := newNoteServiceForTest(new(MockNoteRepository), new(MockGenerationJobRepository), patientRepo, "patient-1")

		patientRepo.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Patient) bool {
			return p.ID == "patient-1" && p.DoctorID == "doctor-1" && p.Name == "Jane Doe"
		})).Return(nil)

		patient, err := svc.CreatePatient(ctx, CreatePatientInput{
			DoctorID: "doctor-1",
			Name:     "  Jane Doe ",
			Age:      42,
			Gender:   "female",
		})

		require.NoError(t, err)
		assert.Equal(t, "Jane Doe", patient.Name)
		patientRepo.AssertExpectations(t)
	})

	t.Run("rejects blank name", func(t *testing.T) {
		svc := newNoteServiceForTest(new(MockNoteRepository), new(MockGenerationJobRepository), new(MockPatientRepository))

		_, err := svc.CreatePatient(ctx, CreatePatientInput{DoctorID: "doctor-1", Name: "  "})
		require.Error(t, err)
	})

	t.Run("rejects negative age", func(t *testing.T) {
		svc := newNoteServiceForTest(new(MockNoteRepository), new(MockGenerationJobRepository), new(MockPatientRepository))

		_, err := svc.CreatePatient(ctx, CreatePatientInput{DoctorID: "doctor-1", Name: "Jane", Age: -1})
		require.Error(t, err)
	})
}

func TestSanitizeTranscript(t *testing.T) {
	t.Run("normalizes whitespace and expands shorthand", func(t *testing.T) {
		got := SanitizeTranscript("Pt: cough\r\n\r\nDr: since when?\n\n\nPt: 2 days, Hx of asthma, C/O wheezing")
		assert.Equal(t, "Patient: cough\nDoctor: since when?\nPatient: 2 days, History of asthma, Complains of wheezing", got)
	})

	t.Run("returns empty string for blank input", func(t *testing.T) {
		assert.Equal(t, "", SanitizeTranscript(" \r\n \t "))
	})
}
