// Package reservations places time-bounded exclusive holds on appointment
// slots so two sessions can never confirm the same doctor/date/time.
package reservations

import (
	"context"
	"errors"
	"time"
)

// DefaultHoldTTL is how long an unconfirmed hold blocks its slot.
const DefaultHoldTTL = 10 * time.Minute

// Status is the lifecycle state of a Reservation.
type Status string

const (
	StatusHeld      Status = "held"
	StatusConfirmed Status = "confirmed"
	StatusReleased  Status = "released"
	StatusExpired   Status = "expired"
)

var (
	// ErrConflict is returned when another session holds the slot.
	ErrConflict = errors.New("reservations: slot already reserved")
	// ErrExpired is returned when a hold is used after its TTL elapsed.
	ErrExpired = errors.New("reservations: reservation expired")
	// ErrReleased is returned when a released hold is confirmed.
	ErrReleased = errors.New("reservations: reservation released")
	// ErrConfirmed is returned when a confirmed hold is released.
	ErrConfirmed = errors.New("reservations: reservation already confirmed")
	// ErrNotFound is returned for unknown reservation ids.
	ErrNotFound = errors.New("reservations: reservation not found")
)

// Reservation is an exclusive, time-limited hold on one slot key.
type Reservation struct {
	ID          string     `json:"reservation_id"`
	SlotKey     string     `json:"slot_key"`
	SessionID   string     `json:"session_id"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
}

// Active reports whether r blocks its slot at now.
func (r Reservation) Active(now time.Time) bool {
	switch r.Status {
	case StatusConfirmed:
		return true
	case StatusHeld:
		return now.Before(r.ExpiresAt)
	default:
		return false
	}
}

// StatusAt returns the effective status at now; a held reservation past its
// expiry reads as expired even before any sweep ran.
func (r Reservation) StatusAt(now time.Time) Status {
	if r.Status == StatusHeld && !now.Before(r.ExpiresAt) {
		return StatusExpired
	}
	return r.Status
}

// Store is the shared keyspace behind the Manager. Implementations must make
// every operation on one slot key linearizable with the others on that key.
type Store interface {
	// Acquire installs candidate as holder of its slot key unless another
	// reservation is active at now, and returns whichever reservation holds
	// the key afterwards.
	Acquire(ctx context.Context, candidate Reservation, now time.Time) (Reservation, error)
	Get(ctx context.Context, id string) (Reservation, error)
	Confirm(ctx context.Context, id string, now time.Time) (Reservation, error)
	Release(ctx context.Context, id string, now time.Time) (Reservation, error)
	// Reopen turns a confirmed reservation back into a hold with its
	// original expiry; a hold whose expiry has passed frees its slot.
	Reopen(ctx context.Context, id string, now time.Time) (Reservation, error)
	// Holders returns the active reservation for each key that has one.
	Holders(ctx context.Context, slotKeys []string, now time.Time) (map[string]Reservation, error)
	// Sweep evicts holds that expired before now and reports how many.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
