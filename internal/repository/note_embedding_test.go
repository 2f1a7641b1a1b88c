//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soapify-health/soapify/internal/domain"
	"github.com/soapify-health/soapify/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unitVector returns a 1536-dim vector pointing along the given axis. Distinct
// axes are orthogonal, which makes similarity ranking predictable in tests.
func unitVector(axis int) []float32 {
	v := make([]float32, 1536)
	v[axis%1536] = 1
	return v
}

func seedEmbedding(ctx context.Context, t *testing.T, pool *pgxpool.Pool, repo *NoteEmbeddingRepository, noteRepo *NoteRepository, doctorID, patientID, content string, axis int) *domain.NoteEmbedding {
	t.Helper()
	note := seedNote(ctx, t, noteRepo, doctorID, patientID, "visit")
	require.NoError(t, noteRepo.MarkCompleted(ctx, note.ID, content))

	e := &domain.NoteEmbedding{
		NoteID:     note.ID,
		DoctorID:   doctorID,
		PatientID:  patientID,
		SoapNumber: note.SoapNumber,
		Content:    content,
		Embedding:  unitVector(axis),
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, e))
	return e
}

func TestNoteEmbeddingRepository_SearchByPatient_RanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	noteRepo := NewNoteRepository(pool)
	embeddingRepo := NewNoteEmbeddingRepository(pool)

	doctor := seedDoctor(ctx, t, pool, "ada@clinic.example")
	patient := seedPatient(ctx, t, pool, doctor.ID, "Patient A")

	match := seedEmbedding(ctx, t, pool, embeddingRepo, noteRepo, doctor.ID, patient.ID, "SUBJECTIVE: wheezing and cough.", 0)
	seedEmbedding(ctx, t, pool, embeddingRepo, noteRepo, doctor.ID, patient.ID, "SUBJECTIVE: sprained ankle.", 1)

	result, err := embeddingRepo.SearchByPatient(ctx, doctor.ID, patient.ID, unitVector(0), 2)
	require.NoError(t, err)
	require.Len(t, result, 2)

	// The identical vector ranks first with the higher score.
	assert.Equal(t, match.NoteID, result[0].NoteID)
	assert.Greater(t, result[0].Score, result[1].Score)
}

func TestNoteEmbeddingRepository_SearchByPatient_ScopeIsolation(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	noteRepo := NewNoteRepository(pool)
	embeddingRepo := NewNoteEmbeddingRepository(pool)

	doctorA := seedDoctor(ctx, t, pool, "a@clinic.example")
	doctorB := seedDoctor(ctx, t, pool, "b@clinic.example")
	patientA1 := seedPatient(ctx, t, pool, doctorA.ID, "A1")
	patientA2 := seedPatient(ctx, t, pool, doctorA.ID, "A2")
	patientB1 := seedPatient(ctx, t, pool, doctorB.ID, "B1")

	own := seedEmbedding(ctx, t, pool, embeddingRepo, noteRepo, doctorA.ID, patientA1.ID, "SUBJECTIVE: own history.", 0)
	seedEmbedding(ctx, t, pool, embeddingRepo, noteRepo, doctorA.ID, patientA2.ID, "SUBJECTIVE: sibling patient.", 0)
	seedEmbedding(ctx, t, pool, embeddingRepo, noteRepo, doctorB.ID, patientB1.ID, "SUBJECTIVE: other doctor.", 0)

	// Even with identical embeddings everywhere, only the pair's own rows
	// are reachable.
	result, err := embeddingRepo.SearchByPatient(ctx, doctorA.ID, patientA1.ID, unitVector(0), 10)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, own.NoteID, result[0].NoteID)

	// A doctor querying a patient they do not own gets nothing, not an error.
	result, err = embeddingRepo.SearchByPatient(ctx, doctorB.ID, patientA1.ID, unitVector(0), 10)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestNoteEmbeddingRepository_SearchByPatient_EmptyHistory(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	embeddingRepo := NewNoteEmbeddingRepository(pool)

	result, err := embeddingRepo.SearchByPatient(ctx, uuid.NewString(), uuid.NewString(), unitVector(0), 2)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
}

func TestNoteEmbeddingRepository_SearchByPatient_TieBreaksOnRecency(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	noteRepo := NewNoteRepository(pool)
	embeddingRepo := NewNoteEmbeddingRepository(pool)

	doctor := seedDoctor(ctx, t, pool, "ada@clinic.example")
	patient := seedPatient(ctx, t, pool, doctor.ID, "Patient A")

	// Same vector, so both rows score identically against the query.
	first := seedEmbedding(ctx, t, pool, embeddingRepo, noteRepo, doctor.ID, patient.ID, "SUBJECTIVE: visit one.", 0)
	second := seedEmbedding(ctx, t, pool, embeddingRepo, noteRepo, doctor.ID, patient.ID, "SUBJECTIVE: visit two.", 0)
	require.Greater(t, second.SoapNumber, first.SoapNumber)

	result, err := embeddingRepo.SearchByPatient(ctx, doctor.ID, patient.ID, unitVector(0), 2)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, second.NoteID, result[0].NoteID)
	assert.Equal(t, first.NoteID, result[1].NoteID)
}
