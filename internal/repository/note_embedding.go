package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/soapify-health/soapify/internal/domain"
)

// NoteEmbeddingRepository is the vector index over completed notes. Records
// are written once by the pipeline and never mutated; retrieval only reads.
type NoteEmbeddingRepository struct {
	db dbtx
}

func NewNoteEmbeddingRepository(pool *pgxpool.Pool) *NoteEmbeddingRepository {
	return &NoteEmbeddingRepository{db: pool}
}

func (r *NoteEmbeddingRepository) Create(ctx context.Context, e *domain.NoteEmbedding) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO note_embeddings (note_id, doctor_id, patient_id, soap_number, content, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.NoteID, e.DoctorID, e.PatientID, e.SoapNumber, e.Content, pgvector.NewVector(e.Embedding), e.CreatedAt,
	)
	return err
}

// SearchByPatient returns the most similar prior notes for exactly one
// (doctor, patient) pair. Both IDs are mandatory WHERE filters; crossing
// doctor or patient boundaries is impossible by construction, not by
// caller discipline. Ties on score fall back to the most recent visit.
func (r *NoteEmbeddingRepository) SearchByPatient(ctx context.Context, doctorID, patientID string, embedding []float32, limit int) (domain.RetrievalResult, error) {
	if limit <= 0 {
		limit = 2
	}

	vec := pgvector.NewVector(embedding)

	rows, err := r.db.Query(ctx,
		`SELECT note_id, soap_number, created_at, content,
		        1.0 / (1.0 + (embedding <=> $1)) AS score
		 FROM note_embeddings
		 WHERE doctor_id = $2 AND patient_id = $3
		 ORDER BY score DESC, soap_number DESC
		 LIMIT $4`,
		vec, doctorID, patientID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := domain.RetrievalResult{}
	for rows.Next() {
		var entry domain.RetrievedNote
		if err := rows.Scan(&entry.NoteID, &entry.SoapNumber, &entry.Date, &entry.Content, &entry.Score); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
