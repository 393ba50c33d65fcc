// Package payments creates hosted checkout sessions for appointment fees and
// falls back to a local mock checkout when the processor cannot be used.
package payments

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
)

// maxOrderCode keeps order codes within the integer range PayOS accepts.
const maxOrderCode = 1<<53 - 1

// ErrNotConfigured is returned by providers missing credentials.
var ErrNotConfigured = errors.New("payments: processor not configured")

// Payer is the buyer contact forwarded to the processor.
type Payer struct {
	Name  string
	Email string
	Phone string
}

// CheckoutParams describes one appointment fee to collect.
type CheckoutParams struct {
	AppointmentID string
	OrderCode     int64
	Amount        int64
	Currency      string
	Description   string
	ServiceName   string
	Payer         Payer
	SuccessURL    string
	CancelURL     string
}

// CheckoutResponse is what a processor returns for a created session.
type CheckoutResponse struct {
	URL        string
	ProviderID string
}

// CheckoutProvider creates payment links for a specific processor.
type CheckoutProvider interface {
	Name() string
	CreatePaymentLink(ctx context.Context, params CheckoutParams) (*CheckoutResponse, error)
}

// Checkout is the gateway result. Mock is set when the URL points at the
// local mock-payment page instead of a processor.
type Checkout struct {
	URL            string `json:"payment_url"`
	Provider       string `json:"provider"`
	ProviderRef    string `json:"provider_ref,omitempty"`
	OrderCode      int64  `json:"order_code"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Mock           bool   `json:"mock"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// OrderCode derives a stable numeric order code from an appointment id.
func OrderCode(appointmentID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.TrimSpace(appointmentID)))
	code := int64(h.Sum64() & maxOrderCode)
	if code == 0 {
		code = 1
	}
	return code
}
