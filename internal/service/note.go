package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soapify-health/soapify/internal/domain"
	"github.com/soapify-health/soapify/internal/pagination"
	"github.com/soapify-health/soapify/internal/telemetry"
)

// NoteRepositoryInterface defines the repository interface for note persistence.
// Every read takes the doctor ID as a mandatory filter: tenant isolation is
// baked into the query, never an ambient context.
type NoteRepositoryInterface interface {
	Create(ctx context.Context, n *domain.Note) error
	GetByID(ctx context.Context, id string) (*domain.Note, error)
	GetForDoctor(ctx context.Context, id, doctorID string) (*domain.Note, error)
	ListByDoctorWithCursor(ctx context.Context, doctorID string, cursor *pagination.Cursor, limit int) (*NotePageResult, error)
	HistoryByPatient(ctx context.Context, doctorID, patientID string) (domain.RetrievalResult, error)
	MarkCompleted(ctx context.Context, id, content string) error
	MarkFailed(ctx context.Context, id, reason string) error
	UpdateContent(ctx context.Context, id, doctorID, content string) error
}

// NotePageResult is one page of a doctor's notes, most recent first.
type NotePageResult struct {
	Items      []*domain.Note
	NextCursor string
	HasMore    bool
}

// GenerationJobRepositoryInterface defines the repository interface for
// scheduling generation jobs.
type GenerationJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.GenerationJob) error
}

// PatientRepositoryInterface defines the repository interface for patient persistence.
type PatientRepositoryInterface interface {
	Create(ctx context.Context, p *domain.Patient) error
	GetForDoctor(ctx context.Context, id, doctorID string) (*domain.Patient, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]*domain.Patient, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// NoteService owns the note lifecycle on the request path: it allocates the
// note record, schedules the generation job and answers polls. The pipeline
// itself runs in GenerationService, off the request path.
type NoteService struct {
	noteRepo    NoteRepositoryInterface
	jobRepo     GenerationJobRepositoryInterface
	patientRepo PatientRepositoryInterface
	txRunner    TxRunner
	uuidGen     UUIDGenerator
}

func NewNoteService(
	noteRepo NoteRepositoryInterface,
	jobRepo GenerationJobRepositoryInterface,
	patientRepo PatientRepositoryInterface,
	txRunner TxRunner,
) *NoteService {
	return &NoteService{
		noteRepo:    noteRepo,
		jobRepo:     jobRepo,
		patientRepo: patientRepo,
		txRunner:    txRunner,
		uuidGen:     &DefaultUUIDGenerator{},
	}
}

// NewNoteServiceWithUUIDGen creates a NoteService with a custom UUID generator (for testing)
func NewNoteServiceWithUUIDGen(
	noteRepo NoteRepositoryInterface,
	jobRepo GenerationJobRepositoryInterface,
	patientRepo PatientRepositoryInterface,
	txRunner TxRunner,
	uuidGen UUIDGenerator,
) *NoteService {
	svc := NewNoteService(noteRepo, jobRepo, patientRepo, txRunner)
	svc.uuidGen = uuidGen
	return svc
}

// SubmitInput represents the input for submitting a transcript
type SubmitInput struct {
	DoctorID   string
	PatientID  string
	Transcript string
}

// Submit creates a Note in PROCESSING and schedules its generation job in
// the same transaction, then returns immediately: the caller polls the
// returned note until it reaches a terminal state. Duplicate submissions
// legitimately create distinct notes; at-most-once execution holds per
// note ID via the job claim, not per transcript.
func (s *NoteService) Submit(ctx context.Context, input SubmitInput) (*domain.Note, error) {
	ctx, span := telemetry.StartSpan(ctx, "NoteService.Submit", telemetry.SpanAttributes{
		DoctorID:  input.DoctorID,
		PatientID: input.PatientID,
	})
	defer span.End()

	transcript := SanitizeTranscript(input.Transcript)
	if transcript == "" {
		return nil, domain.ErrEmptyTranscript
	}

	if _, err := s.patientRepo.GetForDoctor(ctx, input.PatientID, input.DoctorID); err != nil {
		span.SetError(err)
		return nil, err
	}

	now := time.Now().UTC()
	note := domain.NewNote(s.uuidGen.NewString(), input.DoctorID, input.PatientID, transcript, now)
	job := domain.NewGenerationJob(s.uuidGen.NewString(), note.ID, now)

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Notes().Create(ctx, note); err != nil {
			return err
		}
		return repos.GenerationJobs().Create(ctx, job)
	})
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to persist note", err)
	}

	return note, nil
}

// GetStatus returns the note's status and content. A note that does not
// exist and a note owned by another doctor are indistinguishable: both are
// NOT_FOUND.
func (s *NoteService) GetStatus(ctx context.Context, noteID, doctorID string) (*domain.Note, error) {
	return s.noteRepo.GetForDoctor(ctx, noteID, doctorID)
}

// GetHistory returns the patient's prior completed notes for display,
// most recent first. This is the read-only sibling of retrieval; it does
// not touch the embedding index.
func (s *NoteService) GetHistory(ctx context.Context, doctorID, patientID string) (domain.RetrievalResult, error) {
	if _, err := s.patientRepo.GetForDoctor(ctx, patientID, doctorID); err != nil {
		return nil, err
	}
	return s.noteRepo.HistoryByPatient(ctx, doctorID, patientID)
}

// ListNotesInput represents the input for listing a doctor's notes
type ListNotesInput struct {
	DoctorID string
	Cursor   string
	Limit    int
}

// List returns one recency-ordered page of the doctor's notes.
func (s *NoteService) List(ctx context.Context, input ListNotesInput) (*NotePageResult, error) {
	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	return s.noteRepo.ListByDoctorWithCursor(ctx, input.DoctorID, cursor, input.Limit)
}

// UpdateContent overwrites a terminal note's content with a human edit.
// Status and soap number are never touched; a note still PROCESSING cannot
// be edited.
func (s *NoteService) UpdateContent(ctx context.Context, noteID, doctorID, content string) (*domain.Note, error) {
	note, err := s.noteRepo.GetForDoctor(ctx, noteID, doctorID)
	if err != nil {
		return nil, err
	}

	if !note.Status.IsTerminal() {
		return nil, domain.ErrNoteNotTerminal
	}
	if strings.TrimSpace(content) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "content is empty")
	}

	if err := s.noteRepo.UpdateContent(ctx, noteID, doctorID, content); err != nil {
		return nil, err
	}

	note.Content = &content
	return note, nil
}

// CreatePatientInput represents the input for registering a patient
type CreatePatientInput struct {
	DoctorID string
	Name     string
	Age      int32
	Gender   string
}

// CreatePatient registers a doctor-scoped patient.
func (s *NoteService) CreatePatient(ctx context.Context, input CreatePatientInput) (*domain.Patient, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "patient name is required")
	}
	if input.Age < 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "patient age cannot be negative")
	}

	patient := &domain.Patient{
		ID:        s.uuidGen.NewString(),
		DoctorID:  input.DoctorID,
		Name:      strings.TrimSpace(input.Name),
		Age:       input.Age,
		Gender:    input.Gender,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.patientRepo.Create(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

// ListPatients returns all patients registered by the doctor.
func (s *NoteService) ListPatients(ctx context.Context, doctorID string) ([]*domain.Patient, error) {
	return s.patientRepo.ListByDoctor(ctx, doctorID)
}

var (
	blankLines = regexp.MustCompile(`\n\s*\n+`)
	runSpaces  = regexp.MustCompile(`[ \t]+`)

	shorthand = []struct {
		pattern     *regexp.Regexp
		replacement string
	}{
		{regexp.MustCompile(`(?i)\bPt\b:?`), "Patient:"},
		{regexp.MustCompile(`(?i)\bDr\b:?`), "Doctor:"},
		{regexp.MustCompile(`(?i)\bHx\b`), "History"},
		{regexp.MustCompile(`(?i)\bC/O\b`), "Complains of"},
	}
)

// SanitizeTranscript normalizes whitespace and expands common clinical
// shorthand before the transcript is persisted. Returns "" for transcripts
// that are empty after trimming.
func SanitizeTranscript(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = blankLines.ReplaceAllString(text, "\n")
	text = runSpaces.ReplaceAllString(text, " ")

	for _, s := range shorthand {
		text = s.pattern.ReplaceAllString(text, s.replacement)
	}

	return text
}
