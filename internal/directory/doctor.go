// Package directory finds bookable doctors for a specialty.
package directory

import (
	"context"
	"errors"
)

// StatusAvailable marks doctors that accept new appointments.
const StatusAvailable = "available"

var (
	// ErrUnavailable means the doctor store could not be queried. It is
	// retryable and distinct from an empty result.
	ErrUnavailable = errors.New("directory: doctor store unavailable")
	// ErrNotFound is returned for unknown doctor ids.
	ErrNotFound = errors.New("directory: doctor not found")
)

// Doctor is a provider entry as returned to booking clients.
type Doctor struct {
	ID              string  `json:"doctor_id"`
	FullName        string  `json:"full_name"`
	Title           string  `json:"title,omitempty"`
	SpecialtyCode   string  `json:"specialty_code"`
	SpecialtyName   string  `json:"specialty_name"`
	Rating          float64 `json:"rating"`
	ConsultationFee int64   `json:"consultation_fee,omitempty"`
	Status          string  `json:"status"`
	Synthetic       bool    `json:"synthetic"`
}

// Source is the external doctor store.
type Source interface {
	// FindBySpecialty returns available doctors whose stored specialty
	// matches code or name, best rated first.
	FindBySpecialty(ctx context.Context, code, name string, limit int) ([]Doctor, error)
	GetByID(ctx context.Context, id string) (Doctor, error)
}
