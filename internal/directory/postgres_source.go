package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSource reads doctors from the hospital database.
type PostgresSource struct {
	db rowQuerier
}

// NewPostgresSource wraps a pgx pool.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	if pool == nil {
		panic("directory: pgx pool required")
	}
	return &PostgresSource{db: pool}
}

func newPostgresSourceWithQuerier(db rowQuerier) *PostgresSource {
	if db == nil {
		panic("directory: querier required")
	}
	return &PostgresSource{db: db}
}

const doctorColumns = `id, full_name, COALESCE(title, ''), specialty_code, specialty_name,
		COALESCE(rating, 0)::float8, COALESCE(consultation_fee, 0), status`

// FindBySpecialty matches the specialty code or, for rows imported with only
// a free-text specialty, the specialty name.
func (s *PostgresSource) FindBySpecialty(ctx context.Context, code, name string, limit int) ([]Doctor, error) {
	query := `
		SELECT ` + doctorColumns + `
		FROM doctors
		WHERE status = 'available'
		  AND (upper(specialty_code) = upper($1) OR lower(specialty_name) = lower($2))
		ORDER BY rating DESC NULLS LAST, full_name
		LIMIT $3
	`
	rows, err := s.db.Query(ctx, query, code, name, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var doctors []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrUnavailable, err)
		}
		doctors = append(doctors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return doctors, nil
}

func (s *PostgresSource) GetByID(ctx context.Context, id string) (Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`
	d, err := scanDoctor(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Doctor{}, ErrNotFound
		}
		return Doctor{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return d, nil
}

func scanDoctor(row pgx.Row) (Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.FullName,
		&d.Title,
		&d.SpecialtyCode,
		&d.SpecialtyName,
		&d.Rating,
		&d.ConsultationFee,
		&d.Status,
	)
	return d, err
}
