package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/hospital-booking/pkg/logging"
)

// ProviderStripe names checkouts created through Stripe Checkout.
const ProviderStripe = "stripe"

// Stripe rejects checkout sessions that expire sooner than this.
const stripeMinExpiry = 30 * time.Minute

var stripeTracer = otel.Tracer("hospital.internal.payments.stripe")

// StripeCheckoutService creates Stripe Checkout Sessions for appointment fees.
type StripeCheckoutService struct {
	secretKey  string
	baseURL    string
	apiVersion string
	linkTTL    time.Duration
	httpClient *http.Client
	logger     *logging.Logger
	now        func() time.Time
}

// NewStripeCheckoutService creates a new Stripe checkout service.
func NewStripeCheckoutService(secretKey string, logger *logging.Logger) *StripeCheckoutService {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeCheckoutService{
		secretKey:  strings.TrimSpace(secretKey),
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		linkTTL:    stripeMinExpiry,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (s *StripeCheckoutService) WithBaseURL(baseURL string) *StripeCheckoutService {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// WithTimeout bounds each HTTP call.
func (s *StripeCheckoutService) WithTimeout(d time.Duration) *StripeCheckoutService {
	if d > 0 {
		s.httpClient.Timeout = d
	}
	return s
}

// WithLinkTTL sets the session expiry; Stripe's 30 minute floor still applies.
func (s *StripeCheckoutService) WithLinkTTL(d time.Duration) *StripeCheckoutService {
	if d > stripeMinExpiry {
		s.linkTTL = d
	}
	return s
}

func (s *StripeCheckoutService) Name() string { return ProviderStripe }

// CreatePaymentLink implements CheckoutProvider for Stripe.
func (s *StripeCheckoutService) CreatePaymentLink(ctx context.Context, params CheckoutParams) (*CheckoutResponse, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_checkout_session")
	defer span.End()
	span.SetAttributes(
		attribute.String("hospital.appointment_id", params.AppointmentID),
		attribute.Int64("hospital.amount", params.Amount),
	)

	if s.secretKey == "" {
		return nil, ErrNotConfigured
	}

	name := strings.TrimSpace(params.ServiceName)
	if name == "" {
		name = strings.TrimSpace(params.Description)
	}
	if name == "" {
		name = "Consultation"
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "vnd"
	}

	// Build form-encoded body for Stripe API. VND is zero-decimal, so the
	// amount is sent as-is.
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", name)
	form.Set("line_items[0][quantity]", "1")
	form.Set("expires_at", strconv.FormatInt(s.now().Add(s.linkTTL).Unix(), 10))
	form.Set("client_reference_id", params.AppointmentID)
	if params.SuccessURL != "" {
		form.Set("success_url", params.SuccessURL)
	}
	if params.CancelURL != "" {
		form.Set("cancel_url", params.CancelURL)
	}
	if email := strings.TrimSpace(params.Payer.Email); email != "" {
		form.Set("customer_email", email)
	}
	form.Set("metadata[appointment_id]", params.AppointmentID)
	form.Set("metadata[order_code]", strconv.FormatInt(params.OrderCode, 10))
	form.Set("payment_intent_data[metadata][appointment_id]", params.AppointmentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", s.apiVersion)
	req.Header.Set("Idempotency-Key", "appointment-"+params.AppointmentID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("payments: stripe http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("payments: stripe api status %d: %s", resp.StatusCode, readStripeError(resp.Body))
	}

	var parsed stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("payments: stripe decode: %w", err)
	}
	if parsed.URL == "" {
		return nil, fmt.Errorf("payments: stripe response missing checkout url")
	}

	s.logger.Info("stripe checkout session created", "appointment_id", params.AppointmentID, "session_id", parsed.ID)
	return &CheckoutResponse{
		URL:        parsed.URL,
		ProviderID: parsed.ID,
	}, nil
}

// stripeCheckoutSession is the subset of Stripe's Checkout Session we need.
type stripeCheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// stripeErrorResponse represents a Stripe API error.
type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func readStripeError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "unknown error"
	}
	var parsed stripeErrorResponse
	if json.Unmarshal(data, &parsed) == nil && parsed.Error.Message != "" {
		return parsed.Error.Type + ": " + parsed.Error.Message
	}
	return strings.TrimSpace(string(data))
}
