package service

import (
	"context"
	"fmt"
	"time"

	"github.com/soapify-health/soapify/internal/domain"
)

type StorageClientInterface interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error)
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
	HeadObject(ctx context.Context, key string) (*ObjectMetadata, error)
}

type ObjectMetadata struct {
	ContentLength int64
	ContentType   string
	ETag          string
}

type AttachmentRepositoryInterface interface {
	Create(ctx context.Context, a *domain.Attachment) error
	GetForDoctor(ctx context.Context, id, doctorID string) (*domain.Attachment, error)
	ListByNote(ctx context.Context, noteID, doctorID string) ([]*domain.Attachment, error)
}

// AttachmentService links visit recordings to notes. Files move between the
// client and object storage directly via presigned URLs; this service only
// mints URLs and records metadata.
type AttachmentService struct {
	attachmentRepo AttachmentRepositoryInterface
	noteRepo       NoteRepositoryInterface
	storageClient  StorageClientInterface
	uuidGen        UUIDGenerator
}

func NewAttachmentService(
	attachmentRepo AttachmentRepositoryInterface,
	noteRepo NoteRepositoryInterface,
	storageClient StorageClientInterface,
) *AttachmentService {
	return &AttachmentService{
		attachmentRepo: attachmentRepo,
		noteRepo:       noteRepo,
		storageClient:  storageClient,
		uuidGen:        &DefaultUUIDGenerator{},
	}
}

// NewAttachmentServiceWithUUIDGen creates an AttachmentService with a custom UUID generator (for testing)
func NewAttachmentServiceWithUUIDGen(
	attachmentRepo AttachmentRepositoryInterface,
	noteRepo NoteRepositoryInterface,
	storageClient StorageClientInterface,
	uuidGen UUIDGenerator,
) *AttachmentService {
	svc := NewAttachmentService(attachmentRepo, noteRepo, storageClient)
	svc.uuidGen = uuidGen
	return svc
}

type InitUploadInput struct {
	DoctorID    string
	NoteID      string
	Filename    string
	ContentType string
}

type InitUploadResult struct {
	AttachmentID string
	StorageKey   string
	UploadURL    string
}

// InitUpload mints a presigned PUT URL for a new recording. Nothing is
// persisted yet; the attachment record appears at CompleteUpload.
func (s *AttachmentService) InitUpload(ctx context.Context, input InitUploadInput) (*InitUploadResult, error) {
	if input.Filename == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "filename is required")
	}

	if _, err := s.noteRepo.GetForDoctor(ctx, input.NoteID, input.DoctorID); err != nil {
		return nil, err
	}

	attachmentID := s.uuidGen.NewString()
	storageKey := buildStorageKey(input.DoctorID, attachmentID, input.Filename)

	uploadURL, err := s.storageClient.GenerateUploadURL(ctx, storageKey, input.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to generate upload URL: %w", err)
	}

	return &InitUploadResult{
		AttachmentID: attachmentID,
		StorageKey:   storageKey,
		UploadURL:    uploadURL,
	}, nil
}

type CompleteUploadInput struct {
	AttachmentID string
	DoctorID     string
	NoteID       string
	Filename     string
	ContentType  string
	StorageKey   string
}

// CompleteUpload verifies the object landed in storage and records the
// attachment metadata.
func (s *AttachmentService) CompleteUpload(ctx context.Context, input CompleteUploadInput) (*domain.Attachment, error) {
	if _, err := s.noteRepo.GetForDoctor(ctx, input.NoteID, input.DoctorID); err != nil {
		return nil, err
	}

	meta, err := s.storageClient.HeadObject(ctx, input.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to verify uploaded file: %w", err)
	}

	attachment := &domain.Attachment{
		ID:          input.AttachmentID,
		NoteID:      input.NoteID,
		DoctorID:    input.DoctorID,
		Filename:    input.Filename,
		ContentType: input.ContentType,
		StorageKey:  input.StorageKey,
		SizeBytes:   meta.ContentLength,
		CreatedAt:   time.Now().UTC(),
	}

	if err := domain.ValidateAttachment(attachment); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid attachment", err)
	}

	if err := s.attachmentRepo.Create(ctx, attachment); err != nil {
		return nil, fmt.Errorf("failed to create attachment record: %w", err)
	}

	return attachment, nil
}

// GetDownloadURL mints a presigned GET URL for an attachment the doctor owns.
func (s *AttachmentService) GetDownloadURL(ctx context.Context, attachmentID, doctorID string) (string, error) {
	attachment, err := s.attachmentRepo.GetForDoctor(ctx, attachmentID, doctorID)
	if err != nil {
		return "", err
	}

	url, err := s.storageClient.GenerateDownloadURL(ctx, attachment.StorageKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate download URL: %w", err)
	}

	return url, nil
}

// ListByNote returns the attachments recorded for one of the doctor's notes.
func (s *AttachmentService) ListByNote(ctx context.Context, noteID, doctorID string) ([]*domain.Attachment, error) {
	if _, err := s.noteRepo.GetForDoctor(ctx, noteID, doctorID); err != nil {
		return nil, err
	}
	return s.attachmentRepo.ListByNote(ctx, noteID, doctorID)
}

func buildStorageKey(doctorID, attachmentID, filename string) string {
	return fmt.Sprintf("%s/%s/%s", doctorID, attachmentID, filename)
}
