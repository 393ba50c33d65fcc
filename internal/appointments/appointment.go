// Package appointments persists confirmed bookings.
package appointments

import (
	"context"
	"errors"
	"time"
)

const (
	StatusScheduled = "scheduled"
	StatusCancelled = "cancelled"

	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

var (
	// ErrSlotTaken is returned when another active appointment already
	// occupies the doctor/date/time.
	ErrSlotTaken = errors.New("appointments: slot already booked")
	// ErrNotFound is returned for unknown appointment ids.
	ErrNotFound = errors.New("appointments: appointment not found")
)

// Appointment is a confirmed booking.
type Appointment struct {
	ID            string    `json:"appointment_id"`
	SessionID     string    `json:"session_id"`
	SlotKey       string    `json:"slot_key"`
	ReservationID string    `json:"reservation_id"`
	PatientID     string    `json:"patient_id"`
	DoctorID      string    `json:"doctor_id"`
	DoctorName    string    `json:"doctor_name"`
	SpecialtyCode string    `json:"specialty_code"`
	Date          string    `json:"appointment_date"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	Symptoms      string    `json:"symptoms,omitempty"`
	Fee           int64     `json:"consultation_fee"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	PaymentURL    string    `json:"payment_url,omitempty"`
	PaymentRef    string    `json:"payment_ref,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PaymentRef is the checkout reference attached after the gateway call.
type PaymentRef struct {
	URL string
	Ref string
}

// Repository is the appointment store.
type Repository interface {
	// CreateOnce inserts a unless an appointment for the same session and
	// slot key exists, in which case that one is returned with created=false.
	CreateOnce(ctx context.Context, a Appointment) (appt *Appointment, created bool, err error)
	AttachPayment(ctx context.Context, id string, ref PaymentRef) error
	MarkPaid(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Appointment, error)
}
