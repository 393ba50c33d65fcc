package booking

import (
	"errors"
	"fmt"
)

// Error taxonomy of the booking flow. Callers classify with errors.Is.
var (
	// ErrValidation marks missing or malformed step parameters. No state changed.
	ErrValidation = errors.New("booking: validation failed")
	// ErrConflict means another session holds or booked the slot.
	ErrConflict = errors.New("booking: slot already reserved")
	// ErrExpired means the session's reservation lapsed before the summary.
	ErrExpired = errors.New("booking: reservation expired")
	// ErrDependency means a store the request must write to is unavailable.
	ErrDependency = errors.New("booking: dependency unavailable")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func dependency(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDependency, op, err)
}
