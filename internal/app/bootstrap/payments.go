package bootstrap

import (
	"fmt"

	appconfig "github.com/wolfman30/hospital-booking/internal/config"
	"github.com/wolfman30/hospital-booking/internal/payments"
	"github.com/wolfman30/hospital-booking/pkg/logging"
)

// BuildCheckoutProvider wires the processor named by PAYMENT_PROCESSOR. "mock",
// "none" and an empty value select the mock provider, so intentional demo
// checkouts are not recorded as processor fallbacks.
func BuildCheckoutProvider(cfg *appconfig.Config, logger *logging.Logger) (payments.CheckoutProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.PaymentProcessor {
	case payments.ProviderPayOS:
		svc := payments.NewPayOSCheckoutService(cfg.PayOSClientID, cfg.PayOSAPIKey, cfg.PayOSChecksumKey, logger).
			WithTimeout(cfg.PaymentTimeout).
			WithLinkTTL(cfg.PaymentLinkTTL)
		if cfg.PayOSBaseURL != "" {
			svc = svc.WithBaseURL(cfg.PayOSBaseURL)
		}
		if !svc.Configured() {
			logger.Warn("payos credentials missing; checkouts will use the mock payment page")
		}
		return svc, nil
	case payments.ProviderStripe:
		svc := payments.NewStripeCheckoutService(cfg.StripeSecretKey, logger).
			WithTimeout(cfg.PaymentTimeout).
			WithLinkTTL(cfg.PaymentLinkTTL)
		if cfg.StripeBaseURL != "" {
			svc = svc.WithBaseURL(cfg.StripeBaseURL)
		}
		if cfg.StripeSecretKey == "" {
			logger.Warn("stripe secret missing; checkouts will use the mock payment page")
		}
		return svc, nil
	case payments.ProviderMock, "", "none":
		logger.Info("payment processor disabled; using mock payment page")
		return payments.NewMockProvider(cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown payment processor %q", cfg.PaymentProcessor)
	}
}
