package domain

import (
	"fmt"
	"time"
)

// GenerationJobStatus represents the status of an async note generation job
type GenerationJobStatus string

const (
	GenerationJobStatusPending    GenerationJobStatus = "pending"
	GenerationJobStatusProcessing GenerationJobStatus = "processing"
	GenerationJobStatusCompleted  GenerationJobStatus = "completed"
	GenerationJobStatusFailed     GenerationJobStatus = "failed"
)

// GenerationJob schedules the generation pipeline for exactly one note.
// A job is claimed (pending -> processing) at most once, ever; the worker
// never requeues it, so a note can never be generated twice.
type GenerationJob struct {
	ID          string
	NoteID      string
	Status      GenerationJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewGenerationJob creates a pending GenerationJob for a note.
func NewGenerationJob(id, noteID string, createdAt time.Time) *GenerationJob {
	return &GenerationJob{
		ID:        id,
		NoteID:    noteID,
		Status:    GenerationJobStatusPending,
		CreatedAt: createdAt,
	}
}

// ValidateGenerationJob validates a GenerationJob instance
func ValidateGenerationJob(j *GenerationJob) error {
	if j == nil {
		return fmt.Errorf("generation job cannot be nil")
	}
	if j.ID == "" {
		return fmt.Errorf("generation job ID is required")
	}
	if j.NoteID == "" {
		return fmt.Errorf("generation job NoteID is required")
	}
	if !isValidGenerationJobStatus(j.Status) {
		return fmt.Errorf("generation job Status is invalid: %s", j.Status)
	}
	if j.Retries < 0 {
		return fmt.Errorf("generation job Retries cannot be negative")
	}
	return nil
}

func isValidGenerationJobStatus(s GenerationJobStatus) bool {
	switch s {
	case GenerationJobStatusPending, GenerationJobStatusProcessing,
		GenerationJobStatusCompleted, GenerationJobStatusFailed:
		return true
	}
	return false
}
