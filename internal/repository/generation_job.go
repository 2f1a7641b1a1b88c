package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soapify-health/soapify/internal/domain"
)

var ErrGenerationJobNotFound = errors.New("generation job not found")

type GenerationJobRepository struct {
	db dbtx
}

func NewGenerationJobRepository(pool *pgxpool.Pool) *GenerationJobRepository {
	return &GenerationJobRepository{db: pool}
}

func NewGenerationJobRepositoryWithTx(tx pgx.Tx) *GenerationJobRepository {
	return &GenerationJobRepository{db: tx}
}

func (r *GenerationJobRepository) Create(ctx context.Context, job *domain.GenerationJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO generation_jobs (id, note_id, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.NoteID, job.Status, job.Retries, nullableString(job.Error), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *GenerationJobRepository) GetByNoteID(ctx context.Context, noteID string) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	var errMsg pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, note_id, status, retries, error, created_at, processed_at
		 FROM generation_jobs WHERE note_id = $1`,
		noteID,
	).Scan(&job.ID, &job.NoteID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGenerationJobNotFound
		}
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}

// ClaimPending atomically flips pending jobs to processing and returns them.
// FOR UPDATE SKIP LOCKED hands each row to exactly one claimant across all
// workers and restarts; a job row is never claimed twice, which is the
// at-most-once guarantee for note generation.
func (r *GenerationJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.GenerationJob, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM generation_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE generation_jobs
		 SET status = $3
		 FROM cte
		 WHERE generation_jobs.id = cte.id
		 RETURNING generation_jobs.id, generation_jobs.note_id, generation_jobs.status,
		           generation_jobs.retries, generation_jobs.error, generation_jobs.created_at,
		           generation_jobs.processed_at`,
		domain.GenerationJobStatusPending, limit, domain.GenerationJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.GenerationJob
	for rows.Next() {
		var job domain.GenerationJob
		var errMsg pgtype.Text
		if err := rows.Scan(&job.ID, &job.NoteID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			job.Error = errMsg.String
		}
		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

func (r *GenerationJobRepository) UpdateStatus(ctx context.Context, id string, status domain.GenerationJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.GenerationJobStatusCompleted || status == domain.GenerationJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE generation_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrGenerationJobNotFound
	}
	return nil
}
