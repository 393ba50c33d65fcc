// Package patients upserts patient records by contact identity.
package patients

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

var (
	// ErrInvalidName is returned when the name is missing
	ErrInvalidName = errors.New("patients: full name is required")

	// ErrMissingContact is returned when both email and phone are missing
	ErrMissingContact = errors.New("patients: either email or phone is required")

	// ErrNotFound is returned for unknown patient ids
	ErrNotFound = errors.New("patients: patient not found")
)

// Patient is a person receiving care.
type Patient struct {
	ID          string    `json:"patient_id"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	Address     string    `json:"address,omitempty"`
	ContactKey  string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpsertRequest carries the patient_info block of a booking summary.
type UpsertRequest struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender"`
	Address     string `json:"address"`
}

// Normalize trims every field and lower-cases the email.
func (r *UpsertRequest) Normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	r.Gender = strings.TrimSpace(r.Gender)
	r.Address = strings.TrimSpace(r.Address)
}

// Validate validates the upsert request
func (r *UpsertRequest) Validate() error {
	if strings.TrimSpace(r.FullName) == "" {
		return ErrInvalidName
	}
	if ContactKey(r.Email, r.Phone) == "" {
		return ErrMissingContact
	}
	return nil
}

// ContactKey is the natural identity used to match returning patients:
// the lower-cased email when present, otherwise the phone number in
// international digits (a leading 0 becomes 84).
func ContactKey(email, phone string) string {
	if e := strings.ToLower(strings.TrimSpace(email)); e != "" {
		return "email:" + e
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(digits, "0") {
		digits = "84" + digits[1:]
	}
	return "phone:" + digits
}
