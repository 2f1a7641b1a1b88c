package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soapify-health/soapify/internal/domain"
)

type DoctorRepository struct {
	db dbtx
}

func NewDoctorRepository(pool *pgxpool.Pool) *DoctorRepository {
	return &DoctorRepository{db: pool}
}

func (r *DoctorRepository) Create(ctx context.Context, d *domain.Doctor) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO doctors (id, email, full_name, api_token_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.Email, d.FullName, d.APITokenHash, d.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDoctorAlreadyExists
		}
		return err
	}
	return nil
}

func (r *DoctorRepository) GetByID(ctx context.Context, id string) (*domain.Doctor, error) {
	return r.scanOne(r.db.QueryRow(ctx,
		`SELECT id, email, full_name, api_token_hash, created_at
		 FROM doctors WHERE id = $1`,
		id,
	))
}

func (r *DoctorRepository) GetByEmail(ctx context.Context, email string) (*domain.Doctor, error) {
	return r.scanOne(r.db.QueryRow(ctx,
		`SELECT id, email, full_name, api_token_hash, created_at
		 FROM doctors WHERE email = $1`,
		email,
	))
}

// GetByTokenHash resolves the doctor owning an API token. The middleware
// hashes the presented token before lookup; raw tokens are never stored.
func (r *DoctorRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Doctor, error) {
	return r.scanOne(r.db.QueryRow(ctx,
		`SELECT id, email, full_name, api_token_hash, created_at
		 FROM doctors WHERE api_token_hash = $1`,
		tokenHash,
	))
}

func (r *DoctorRepository) List(ctx context.Context) ([]*domain.Doctor, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, email, full_name, api_token_hash, created_at
		 FROM doctors ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	doctors := []*domain.Doctor{}
	for rows.Next() {
		var d domain.Doctor
		if err := rows.Scan(&d.ID, &d.Email, &d.FullName, &d.APITokenHash, &d.CreatedAt); err != nil {
			return nil, err
		}
		doctors = append(doctors, &d)
	}
	return doctors, rows.Err()
}

func (r *DoctorRepository) scanOne(row pgx.Row) (*domain.Doctor, error) {
	var d domain.Doctor
	err := row.Scan(&d.ID, &d.Email, &d.FullName, &d.APITokenHash, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}
