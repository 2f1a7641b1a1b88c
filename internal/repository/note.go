package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soapify-health/soapify/internal/domain"
	"github.com/soapify-health/soapify/internal/pagination"
	"github.com/soapify-health/soapify/internal/service"
)

type NoteRepository struct {
	db dbtx
}

func NewNoteRepository(pool *pgxpool.Pool) *NoteRepository {
	return &NoteRepository{db: pool}
}

func NewNoteRepositoryWithTx(tx pgx.Tx) *NoteRepository {
	return &NoteRepository{db: tx}
}

// Create inserts the note and assigns the next per-patient soap number in
// the same statement. The unique (patient_id, soap_number) constraint turns
// a concurrent-insert race into an error instead of a duplicate number.
func (r *NoteRepository) Create(ctx context.Context, n *domain.Note) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO notes (id, doctor_id, patient_id, soap_number, transcript, status, content, failure_reason, created_at, updated_at)
		 VALUES ($1, $2, $3,
		         (SELECT COALESCE(MAX(soap_number), 0) + 1 FROM notes WHERE patient_id = $3),
		         $4, $5, NULL, NULL, $6, $6)
		 RETURNING soap_number`,
		n.ID, n.DoctorID, n.PatientID, n.Transcript, n.Status, n.CreatedAt,
	).Scan(&n.SoapNumber)
	return err
}

func (r *NoteRepository) GetByID(ctx context.Context, id string) (*domain.Note, error) {
	return r.scanOne(r.db.QueryRow(ctx,
		`SELECT id, doctor_id, patient_id, soap_number, transcript, status, content, failure_reason, created_at, updated_at
		 FROM notes WHERE id = $1`,
		id,
	))
}

// GetForDoctor loads a note only if it belongs to the doctor. Missing notes
// and foreign notes both come back as ErrNoteNotFound: tenant isolation is
// enforced at read, not just write.
func (r *NoteRepository) GetForDoctor(ctx context.Context, id, doctorID string) (*domain.Note, error) {
	return r.scanOne(r.db.QueryRow(ctx,
		`SELECT id, doctor_id, patient_id, soap_number, transcript, status, content, failure_reason, created_at, updated_at
		 FROM notes WHERE id = $1 AND doctor_id = $2`,
		id, doctorID,
	))
}

func (r *NoteRepository) ListByDoctorWithCursor(ctx context.Context, doctorID string, cursor *pagination.Cursor, limit int) (*service.NotePageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, doctor_id, patient_id, soap_number, transcript, status, content, failure_reason, created_at, updated_at
			 FROM notes
			 WHERE doctor_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			doctorID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, doctor_id, patient_id, soap_number, transcript, status, content, failure_reason, created_at, updated_at
			 FROM notes
			 WHERE doctor_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			doctorID, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanNoteRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &service.NotePageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// HistoryByPatient lists the patient's COMPLETED notes for display, most
// recent visit first. Both IDs are mandatory filters.
func (r *NoteRepository) HistoryByPatient(ctx context.Context, doctorID, patientID string) (domain.RetrievalResult, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, soap_number, created_at, content
		 FROM notes
		 WHERE doctor_id = $1 AND patient_id = $2 AND status = $3 AND content IS NOT NULL
		 ORDER BY soap_number DESC`,
		doctorID, patientID, domain.NoteStatusCompleted,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := domain.RetrievalResult{}
	for rows.Next() {
		var entry domain.RetrievedNote
		if err := rows.Scan(&entry.NoteID, &entry.SoapNumber, &entry.Date, &entry.Content); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// MarkCompleted moves the note PROCESSING -> COMPLETED with its content.
// The status guard in the WHERE clause makes the transition write-once.
func (r *NoteRepository) MarkCompleted(ctx context.Context, id, content string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE notes SET status = $1, content = $2, failure_reason = NULL, updated_at = $3
		 WHERE id = $4 AND status = $5`,
		domain.NoteStatusCompleted, content, time.Now().UTC(), id, domain.NoteStatusProcessing,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrTerminalStatus
	}
	return nil
}

// MarkFailed moves the note PROCESSING -> FAILED with a reason code and no
// content. Partial or garbled output is never persisted.
func (r *NoteRepository) MarkFailed(ctx context.Context, id, reason string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE notes SET status = $1, content = NULL, failure_reason = $2, updated_at = $3
		 WHERE id = $4 AND status = $5`,
		domain.NoteStatusFailed, nullableString(reason), time.Now().UTC(), id, domain.NoteStatusProcessing,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrTerminalStatus
	}
	return nil
}

// UpdateContent applies a human edit to a terminal note. Status and soap
// number are untouched by design.
func (r *NoteRepository) UpdateContent(ctx context.Context, id, doctorID, content string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE notes SET content = $1, updated_at = $2
		 WHERE id = $3 AND doctor_id = $4 AND status <> $5`,
		content, time.Now().UTC(), id, doctorID, domain.NoteStatusProcessing,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrNoteNotFound
	}
	return nil
}

func (r *NoteRepository) scanOne(row pgx.Row) (*domain.Note, error) {
	var n domain.Note
	var content, reason *string
	err := row.Scan(&n.ID, &n.DoctorID, &n.PatientID, &n.SoapNumber, &n.Transcript, &n.Status, &content, &reason, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoteNotFound
		}
		return nil, err
	}
	n.Content = content
	if reason != nil {
		n.FailureReason = *reason
	}
	return &n, nil
}

func scanNoteRows(rows pgx.Rows) ([]*domain.Note, error) {
	var notes []*domain.Note
	for rows.Next() {
		var n domain.Note
		var content, reason *string
		if err := rows.Scan(&n.ID, &n.DoctorID, &n.PatientID, &n.SoapNumber, &n.Transcript, &n.Status, &content, &reason, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		n.Content = content
		if reason != nil {
			n.FailureReason = *reason
		}
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}
