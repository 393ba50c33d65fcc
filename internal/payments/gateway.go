package payments

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/hospital-booking/pkg/logging"
)

// DefaultTimeout bounds a processor call before the mock checkout engages.
const DefaultTimeout = 5 * time.Second

var gatewayTracer = otel.Tracer("hospital.internal.payments")

// Recorder receives checkout outcomes for metrics.
type Recorder interface {
	ObserveCheckout(provider, outcome string, elapsed time.Duration)
}

// result is a processor attempt that has either a checkout or an error.
type result struct {
	checkout Checkout
	err      error
}

// orElse returns the checkout, or fallback(err) when the attempt failed.
func (r result) orElse(fallback func(error) Checkout) Checkout {
	if r.err != nil {
		return fallback(r.err)
	}
	return r.checkout
}

// Gateway fronts one CheckoutProvider and guarantees a payment URL.
type Gateway struct {
	provider      CheckoutProvider
	publicBaseURL string
	timeout       time.Duration
	logger        *logging.Logger
	metrics       Recorder
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithGatewayRecorder attaches a metrics recorder.
func WithGatewayRecorder(r Recorder) GatewayOption {
	return func(g *Gateway) { g.metrics = r }
}

// NewGateway creates a gateway. A nil provider means every checkout is a mock.
func NewGateway(provider CheckoutProvider, publicBaseURL string, timeout time.Duration, logger *logging.Logger, opts ...GatewayOption) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	g := &Gateway{
		provider:      provider,
		publicBaseURL: normalizeBaseURL(publicBaseURL),
		timeout:       timeout,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ProviderName reports the configured processor, or "mock".
func (g *Gateway) ProviderName() string {
	if g.provider == nil {
		return ProviderMock
	}
	return g.provider.Name()
}

// CreateCheckout asks the processor for a hosted checkout and falls back to
// the mock checkout on any failure. It makes exactly one processor attempt.
func (g *Gateway) CreateCheckout(ctx context.Context, params CheckoutParams) Checkout {
	ctx, span := gatewayTracer.Start(ctx, "payments.create_checkout")
	defer span.End()

	if params.OrderCode == 0 {
		params.OrderCode = OrderCode(params.AppointmentID)
	}
	if params.SuccessURL == "" {
		params.SuccessURL = g.callbackURL("/payment/return", params)
	}
	if params.CancelURL == "" {
		params.CancelURL = g.callbackURL("/payment/cancel", params)
	}
	span.SetAttributes(
		attribute.String("hospital.appointment_id", params.AppointmentID),
		attribute.String("hospital.payment_provider", g.ProviderName()),
	)

	checkout := g.attempt(ctx, params).orElse(func(err error) Checkout {
		span.RecordError(err)
		mock := MockCheckout(g.publicBaseURL, params)
		mock.FallbackReason = fallbackReason(err)
		g.logger.Warn("checkout fell back to mock payment",
			"appointment_id", params.AppointmentID,
			"provider", g.ProviderName(),
			"reason", mock.FallbackReason,
			"error", err,
		)
		return mock
	})
	span.SetAttributes(attribute.Bool("hospital.payment_mock", checkout.Mock))
	return checkout
}

func (g *Gateway) attempt(ctx context.Context, params CheckoutParams) result {
	if g.provider == nil {
		return result{err: ErrNotConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.provider.CreatePaymentLink(ctx, params)
	elapsed := time.Since(start)
	if err == nil && (resp == nil || resp.URL == "") {
		err = errors.New("payments: provider returned empty checkout url")
	}
	if err != nil {
		g.observe(fallbackReason(err), elapsed)
		return result{err: err}
	}
	g.observe("created", elapsed)
	return result{checkout: Checkout{
		URL:         resp.URL,
		Provider:    g.provider.Name(),
		ProviderRef: resp.ProviderID,
		OrderCode:   params.OrderCode,
		Amount:      params.Amount,
		Currency:    params.Currency,
		Mock:        g.provider.Name() == ProviderMock,
	}}
}

func (g *Gateway) callbackURL(path string, params CheckoutParams) string {
	q := url.Values{}
	q.Set("appointment_id", params.AppointmentID)
	return g.publicBaseURL + path + "?" + q.Encode()
}

func (g *Gateway) observe(outcome string, elapsed time.Duration) {
	if g.metrics != nil {
		g.metrics.ObserveCheckout(g.ProviderName(), outcome, elapsed)
	}
}

func fallbackReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, context.DeadlineExceeded), strings.Contains(err.Error(), "Client.Timeout"):
		return "timeout"
	default:
		return "processor_error"
	}
}
