package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/soapify-health/soapify/internal/domain"
)

// GenerationJobRepository defines the interface for generation job persistence
type GenerationJobRepository interface {
	// ClaimPending atomically claims pending jobs (pending -> processing).
	// Each job is returned to exactly one claimant, ever; this is what makes
	// note generation at-most-once across workers and restarts.
	ClaimPending(ctx context.Context, limit int) ([]*domain.GenerationJob, error)

	// UpdateStatus moves a claimed job to a terminal job status.
	UpdateStatus(ctx context.Context, jobID string, status domain.GenerationJobStatus, errMsg string) error
}

// NoteGenerator runs the generation pipeline for one note
type NoteGenerator interface {
	Process(ctx context.Context, noteID string) error
}

const claimBatchSize = 10

// GenerationWorker drains claimed generation jobs through the pipeline.
// There is deliberately no requeue path: a job that fails to persist its
// outcome stays failed and the note stays visible as PROCESSING or FAILED
// for the client to resubmit.
type GenerationWorker struct {
	repo    GenerationJobRepository
	service NoteGenerator
}

// NewGenerationWorker creates a new GenerationWorker instance
func NewGenerationWorker(repo GenerationJobRepository, service NoteGenerator) *GenerationWorker {
	return &GenerationWorker{
		repo:    repo,
		service: service,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *GenerationWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("processing %d generation jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *GenerationWorker) processJob(ctx context.Context, job *domain.GenerationJob) error {
	log.Printf("processing job %s for note %s", job.ID, job.NoteID)

	if err := w.service.Process(ctx, job.NoteID); err != nil {
		errMsg := fmt.Sprintf("pipeline outcome not persisted: %v", err)
		if updateErr := w.repo.UpdateStatus(ctx, job.ID, domain.GenerationJobStatusFailed, errMsg); updateErr != nil {
			return fmt.Errorf("failed to update job status to failed: %w", updateErr)
		}
		return err
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.GenerationJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("job %s completed", job.ID)
	return nil
}
