package patients

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores patients in the hospital database.
type PostgresRepository struct {
	db rowQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithQuerier(db rowQuerier) *PostgresRepository {
	if db == nil {
		panic("patients: querier required")
	}
	return &PostgresRepository{db: db}
}

// Upsert inserts a patient or refreshes the row sharing its contact key.
func (r *PostgresRepository) Upsert(ctx context.Context, req UpsertRequest) (*Patient, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := ContactKey(req.Email, req.Phone)
	query := `
		INSERT INTO patients (id, contact_key, full_name, email, phone, date_of_birth, gender, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (contact_key) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			email = COALESCE(NULLIF(EXCLUDED.email, ''), patients.email),
			phone = COALESCE(NULLIF(EXCLUDED.phone, ''), patients.phone),
			date_of_birth = COALESCE(NULLIF(EXCLUDED.date_of_birth, ''), patients.date_of_birth),
			gender = COALESCE(NULLIF(EXCLUDED.gender, ''), patients.gender),
			address = COALESCE(NULLIF(EXCLUDED.address, ''), patients.address),
			updated_at = now()
		RETURNING id, full_name, email, phone, date_of_birth, gender, address, contact_key, created_at, updated_at
	`
	p, err := scanPatient(r.db.QueryRow(ctx, query,
		uuid.New().String(),
		key,
		req.FullName,
		req.Email,
		req.Phone,
		req.DateOfBirth,
		req.Gender,
		req.Address,
	))
	if err != nil {
		return nil, fmt.Errorf("patients: upsert failed: %w", err)
	}
	return p, nil
}

// GetByID fetches one patient.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Patient, error) {
	query := `
		SELECT id, full_name, email, phone, date_of_birth, gender, address, contact_key, created_at, updated_at
		FROM patients
		WHERE id = $1
	`
	p, err := scanPatient(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("patients: get failed: %w", err)
	}
	return p, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(
		&p.ID,
		&p.FullName,
		&p.Email,
		&p.Phone,
		&p.DateOfBirth,
		&p.Gender,
		&p.Address,
		&p.ContactKey,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
