package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	IntentPending   = "pending"
	IntentPaid      = "paid"
	IntentCancelled = "cancelled"
)

// ErrIntentNotFound is returned when an appointment has no payment intent.
var ErrIntentNotFound = errors.New("payments: payment intent not found")

// Intent is the checkout session recorded for an appointment fee.
type Intent struct {
	ID            string    `json:"intent_id"`
	AppointmentID string    `json:"appointment_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	CheckoutURL   string    `json:"checkout_url"`
	Provider      string    `json:"provider"`
	ProviderRef   string    `json:"provider_ref"`
	OrderCode     int64     `json:"order_code"`
	Mock          bool      `json:"mock"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewIntent records checkout as the pending intent for appointmentID.
func NewIntent(appointmentID string, checkout Checkout) Intent {
	return Intent{
		AppointmentID: appointmentID,
		Amount:        checkout.Amount,
		Currency:      checkout.Currency,
		CheckoutURL:   checkout.URL,
		Provider:      checkout.Provider,
		ProviderRef:   checkout.ProviderRef,
		OrderCode:     checkout.OrderCode,
		Mock:          checkout.Mock,
		Status:        IntentPending,
	}
}

// IntentRepository persists one payment intent per appointment.
type IntentRepository interface {
	// Save inserts the intent or, while the existing one is still pending,
	// refreshes its checkout reference. The amount is never rewritten.
	Save(ctx context.Context, intent Intent) (*Intent, error)
	GetByAppointment(ctx context.Context, appointmentID string) (*Intent, error)
	UpdateStatus(ctx context.Context, appointmentID, status string) error
}

// InMemoryIntentRepository keeps intents in process memory.
type InMemoryIntentRepository struct {
	mu      sync.Mutex
	intents map[string]*Intent
}

func NewInMemoryIntentRepository() *InMemoryIntentRepository {
	return &InMemoryIntentRepository{intents: make(map[string]*Intent)}
}

func (r *InMemoryIntentRepository) Save(_ context.Context, intent Intent) (*Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := r.intents[intent.AppointmentID]; ok {
		if existing.Status == IntentPending {
			existing.CheckoutURL = intent.CheckoutURL
			existing.Provider = intent.Provider
			existing.ProviderRef = intent.ProviderRef
			existing.OrderCode = intent.OrderCode
			existing.Mock = intent.Mock
			existing.UpdatedAt = now
		}
		cp := *existing
		return &cp, nil
	}
	if intent.ID == "" {
		intent.ID = uuid.New().String()
	}
	if intent.Status == "" {
		intent.Status = IntentPending
	}
	intent.CreatedAt = now
	intent.UpdatedAt = now
	stored := intent
	r.intents[intent.AppointmentID] = &stored
	return &intent, nil
}

func (r *InMemoryIntentRepository) GetByAppointment(_ context.Context, appointmentID string) (*Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[appointmentID]
	if !ok {
		return nil, ErrIntentNotFound
	}
	cp := *intent
	return &cp, nil
}

func (r *InMemoryIntentRepository) UpdateStatus(_ context.Context, appointmentID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[appointmentID]
	if !ok {
		return ErrIntentNotFound
	}
	intent.Status = status
	intent.UpdatedAt = time.Now().UTC()
	return nil
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresIntentRepository stores intents in the payment_intents table.
type PostgresIntentRepository struct {
	db rowQuerier
}

// NewPostgresIntentRepository creates a repository backed by pgx.
func NewPostgresIntentRepository(pool *pgxpool.Pool) *PostgresIntentRepository {
	if pool == nil {
		panic("payments: pgx pool required")
	}
	return &PostgresIntentRepository{db: pool}
}

func newPostgresIntentRepositoryWithQuerier(db rowQuerier) *PostgresIntentRepository {
	if db == nil {
		panic("payments: querier required")
	}
	return &PostgresIntentRepository{db: db}
}

const intentColumns = `id, appointment_id, amount, currency, checkout_url, provider, provider_ref,
		order_code, mock, status, created_at, updated_at`

func (r *PostgresIntentRepository) Save(ctx context.Context, intent Intent) (*Intent, error) {
	if intent.ID == "" {
		intent.ID = uuid.New().String()
	}
	if intent.Status == "" {
		intent.Status = IntentPending
	}
	query := `
		INSERT INTO payment_intents (id, appointment_id, amount, currency, checkout_url, provider, provider_ref, order_code, mock, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (appointment_id) DO UPDATE SET
			checkout_url = CASE WHEN payment_intents.status = 'pending' THEN EXCLUDED.checkout_url ELSE payment_intents.checkout_url END,
			provider = CASE WHEN payment_intents.status = 'pending' THEN EXCLUDED.provider ELSE payment_intents.provider END,
			provider_ref = CASE WHEN payment_intents.status = 'pending' THEN EXCLUDED.provider_ref ELSE payment_intents.provider_ref END,
			order_code = CASE WHEN payment_intents.status = 'pending' THEN EXCLUDED.order_code ELSE payment_intents.order_code END,
			mock = CASE WHEN payment_intents.status = 'pending' THEN EXCLUDED.mock ELSE payment_intents.mock END,
			updated_at = now()
		RETURNING ` + intentColumns
	saved, err := scanIntent(r.db.QueryRow(ctx, query,
		intent.ID,
		intent.AppointmentID,
		intent.Amount,
		intent.Currency,
		intent.CheckoutURL,
		intent.Provider,
		intent.ProviderRef,
		intent.OrderCode,
		intent.Mock,
		intent.Status,
	))
	if err != nil {
		return nil, fmt.Errorf("payments: failed to save intent: %w", err)
	}
	return saved, nil
}

func (r *PostgresIntentRepository) GetByAppointment(ctx context.Context, appointmentID string) (*Intent, error) {
	intent, err := scanIntent(r.db.QueryRow(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE appointment_id = $1`, appointmentID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("payments: load intent: %w", err)
	}
	return intent, nil
}

func (r *PostgresIntentRepository) UpdateStatus(ctx context.Context, appointmentID, status string) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE payment_intents SET status = $2, updated_at = now() WHERE appointment_id = $1`,
		appointmentID, status,
	)
	if err != nil {
		return fmt.Errorf("payments: update intent status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrIntentNotFound
	}
	return nil
}

func scanIntent(row pgx.Row) (*Intent, error) {
	var i Intent
	if err := row.Scan(
		&i.ID,
		&i.AppointmentID,
		&i.Amount,
		&i.Currency,
		&i.CheckoutURL,
		&i.Provider,
		&i.ProviderRef,
		&i.OrderCode,
		&i.Mock,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &i, nil
}
