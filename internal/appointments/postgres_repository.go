package appointments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the hospital database. The
// appointments table carries a unique (session_id, slot_key) constraint and a
// partial unique index on (doctor_id, appointment_date, start_time) for
// non-cancelled rows.
type PostgresRepository struct {
	db rowQuerier
}

// NewPostgresRepository creates a repository backed by pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithQuerier(db rowQuerier) *PostgresRepository {
	if db == nil {
		panic("appointments: querier required")
	}
	return &PostgresRepository{db: db}
}

const appointmentColumns = `id, session_id, slot_key, reservation_id, patient_id, doctor_id, doctor_name,
		specialty_code, appointment_date, start_time, end_time, symptoms, fee, currency,
		status, payment_status, payment_url, payment_ref, created_at, updated_at`

func (r *PostgresRepository) CreateOnce(ctx context.Context, a Appointment) (*Appointment, bool, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if a.PaymentStatus == "" {
		a.PaymentStatus = PaymentPending
	}

	query := `
		INSERT INTO appointments (id, session_id, slot_key, reservation_id, patient_id, doctor_id, doctor_name,
			specialty_code, appointment_date, start_time, end_time, symptoms, fee, currency, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (session_id, slot_key) DO NOTHING
		RETURNING ` + appointmentColumns
	created, err := scanAppointment(r.db.QueryRow(ctx, query,
		a.ID,
		a.SessionID,
		a.SlotKey,
		a.ReservationID,
		a.PatientID,
		a.DoctorID,
		a.DoctorName,
		a.SpecialtyCode,
		a.Date,
		a.StartTime,
		a.EndTime,
		a.Symptoms,
		a.Fee,
		a.Currency,
		a.Status,
		a.PaymentStatus,
	))
	switch {
	case err == nil:
		return created, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Same session already booked this slot.
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, false, ErrSlotTaken
		}
		return nil, false, fmt.Errorf("appointments: insert: %w", err)
	}

	existing, err := scanAppointment(r.db.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE session_id = $1 AND slot_key = $2`,
		a.SessionID, a.SlotKey,
	))
	if err != nil {
		return nil, false, fmt.Errorf("appointments: load existing: %w", err)
	}
	return existing, false, nil
}

func (r *PostgresRepository) AttachPayment(ctx context.Context, id string, ref PaymentRef) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE appointments SET payment_url = $2, payment_ref = $3, updated_at = now() WHERE id = $1`,
		id, ref.URL, ref.Ref,
	)
	if err != nil {
		return fmt.Errorf("appointments: attach payment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) MarkPaid(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE appointments SET payment_status = 'paid', updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("appointments: mark paid: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: load: %w", err)
	}
	return a, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(
		&a.ID,
		&a.SessionID,
		&a.SlotKey,
		&a.ReservationID,
		&a.PatientID,
		&a.DoctorID,
		&a.DoctorName,
		&a.SpecialtyCode,
		&a.Date,
		&a.StartTime,
		&a.EndTime,
		&a.Symptoms,
		&a.Fee,
		&a.Currency,
		&a.Status,
		&a.PaymentStatus,
		&a.PaymentURL,
		&a.PaymentRef,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
