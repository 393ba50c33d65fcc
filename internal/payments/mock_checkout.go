package payments

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// ProviderMock names checkouts served by the local mock-payment page.
const ProviderMock = "mock"

const defaultPublicBaseURL = "http://localhost:8080"

// MockCheckout builds the deterministic local checkout for params. It never
// fails: an unusable base URL falls back to localhost.
func MockCheckout(publicBaseURL string, params CheckoutParams) Checkout {
	base := normalizeBaseURL(publicBaseURL)
	q := url.Values{}
	q.Set("appointment_id", params.AppointmentID)
	q.Set("order_code", strconv.FormatInt(params.OrderCode, 10))
	q.Set("amount", strconv.FormatInt(params.Amount, 10))
	return Checkout{
		URL:         base + "/payment/mock?" + q.Encode(),
		Provider:    ProviderMock,
		ProviderRef: "mock:" + strconv.FormatInt(params.OrderCode, 10),
		OrderCode:   params.OrderCode,
		Amount:      params.Amount,
		Currency:    params.Currency,
		Mock:        true,
	}
}

// MockProvider is a CheckoutProvider that always serves the mock page; it is
// selected when PAYMENT_PROCESSOR is mock or left empty.
type MockProvider struct {
	publicBaseURL string
}

func NewMockProvider(publicBaseURL string) *MockProvider {
	return &MockProvider{publicBaseURL: publicBaseURL}
}

func (p *MockProvider) Name() string { return ProviderMock }

func (p *MockProvider) CreatePaymentLink(_ context.Context, params CheckoutParams) (*CheckoutResponse, error) {
	c := MockCheckout(p.publicBaseURL, params)
	return &CheckoutResponse{URL: c.URL, ProviderID: c.ProviderRef}, nil
}

func normalizeBaseURL(value string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if !isValidBaseURL(value) {
		return defaultPublicBaseURL
	}
	return value
}

func isValidBaseURL(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return true
	default:
		return false
	}
}
