package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soapify-health/soapify/internal/domain"
)

type AttachmentRepository struct {
	db dbtx
}

func NewAttachmentRepository(pool *pgxpool.Pool) *AttachmentRepository {
	return &AttachmentRepository{db: pool}
}

func (r *AttachmentRepository) Create(ctx context.Context, a *domain.Attachment) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO attachments (id, note_id, doctor_id, filename, content_type, storage_key, size_bytes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.NoteID, a.DoctorID, a.Filename, nullableString(a.ContentType), a.StorageKey, a.SizeBytes, a.CreatedAt,
	)
	return err
}

func (r *AttachmentRepository) GetForDoctor(ctx context.Context, id, doctorID string) (*domain.Attachment, error) {
	var a domain.Attachment
	var contentType *string
	err := r.db.QueryRow(ctx,
		`SELECT id, note_id, doctor_id, filename, content_type, storage_key, size_bytes, created_at
		 FROM attachments WHERE id = $1 AND doctor_id = $2`,
		id, doctorID,
	).Scan(&a.ID, &a.NoteID, &a.DoctorID, &a.Filename, &contentType, &a.StorageKey, &a.SizeBytes, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAttachmentNotFound
		}
		return nil, err
	}
	if contentType != nil {
		a.ContentType = *contentType
	}
	return &a, nil
}

func (r *AttachmentRepository) UpdateSize(ctx context.Context, id string, sizeBytes int64) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE attachments SET size_bytes = $1 WHERE id = $2`,
		sizeBytes, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAttachmentNotFound
	}
	return nil
}

func (r *AttachmentRepository) ListByNote(ctx context.Context, noteID, doctorID string) ([]*domain.Attachment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, note_id, doctor_id, filename, content_type, storage_key, size_bytes, created_at
		 FROM attachments WHERE note_id = $1 AND doctor_id = $2
		 ORDER BY created_at ASC`,
		noteID, doctorID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := []*domain.Attachment{}
	for rows.Next() {
		var a domain.Attachment
		var contentType *string
		if err := rows.Scan(&a.ID, &a.NoteID, &a.DoctorID, &a.Filename, &contentType, &a.StorageKey, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, err
		}
		if contentType != nil {
			a.ContentType = *contentType
		}
		attachments = append(attachments, &a)
	}
	return attachments, rows.Err()
}
