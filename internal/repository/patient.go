package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soapify-health/soapify/internal/domain"
)

type PatientRepository struct {
	db dbtx
}

func NewPatientRepository(pool *pgxpool.Pool) *PatientRepository {
	return &PatientRepository{db: pool}
}

func (r *PatientRepository) Create(ctx context.Context, p *domain.Patient) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO patients (id, doctor_id, name, age, gender, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.DoctorID, p.Name, p.Age, nullableString(p.Gender), p.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.NewDomainError(domain.ErrCodeAlreadyExists, "patient already exists")
		}
		return err
	}
	return nil
}

// GetForDoctor loads a patient only if the doctor registered them. Foreign
// patients come back as ErrPatientNotFound, same as missing ones.
func (r *PatientRepository) GetForDoctor(ctx context.Context, id, doctorID string) (*domain.Patient, error) {
	var p domain.Patient
	var gender *string
	err := r.db.QueryRow(ctx,
		`SELECT id, doctor_id, name, age, gender, created_at
		 FROM patients WHERE id = $1 AND doctor_id = $2`,
		id, doctorID,
	).Scan(&p.ID, &p.DoctorID, &p.Name, &p.Age, &gender, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPatientNotFound
		}
		return nil, err
	}
	if gender != nil {
		p.Gender = *gender
	}
	return &p, nil
}

func (r *PatientRepository) ListByDoctor(ctx context.Context, doctorID string) ([]*domain.Patient, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, doctor_id, name, age, gender, created_at
		 FROM patients WHERE doctor_id = $1
		 ORDER BY created_at DESC`,
		doctorID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	patients := []*domain.Patient{}
	for rows.Next() {
		var p domain.Patient
		var gender *string
		if err := rows.Scan(&p.ID, &p.DoctorID, &p.Name, &p.Age, &gender, &p.CreatedAt); err != nil {
			return nil, err
		}
		if gender != nil {
			p.Gender = *gender
		}
		patients = append(patients, &p)
	}
	return patients, rows.Err()
}
