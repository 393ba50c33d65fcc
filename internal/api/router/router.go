package router

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/hospital-booking/internal/booking"
	"github.com/wolfman30/hospital-booking/internal/compliance"
	httpmiddleware "github.com/wolfman30/hospital-booking/internal/http/middleware"
	"github.com/wolfman30/hospital-booking/internal/payments"
	"github.com/wolfman30/hospital-booking/pkg/logging"
)

const healthTimeout = 2 * time.Second

// HealthCheck pings one backing service.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Booking            *booking.Handler
	Payments           *payments.CheckoutHandler
	Audit              *compliance.AuditHandler
	// MockCheckout mounts the unauthenticated mock payment completion.
	MockCheckout       bool
	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
	HealthChecks       map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.Booking == nil {
		panic("router: booking handler cannot be nil")
	}
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/booking", func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(cfg.RateLimiter.Middleware)
		}
		api.Post("/chat", cfg.Booking.HandleChat)
	})

	if cfg.Payments != nil {
		r.Route("/payment", func(p chi.Router) {
			p.Get("/mock", cfg.Payments.HandleMockCheckout)
			if cfg.MockCheckout {
				p.Post("/mock/complete", cfg.Payments.HandleMockComplete)
			}
			p.Get("/return", cfg.Payments.HandleReturn)
			p.Get("/cancel", cfg.Payments.HandleCancel)
		})
	}

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		admin.Get("/reservations/{id}", cfg.Booking.HandleGetReservation)
		admin.Delete("/reservations/{id}", cfg.Booking.HandleReleaseReservation)
		admin.Get("/booking/stats", cfg.Booking.HandleStats)
		if cfg.Audit != nil {
			admin.Get("/audit", cfg.Audit.HandleQuery)
		}
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler reports "ok" when every check passes and 503 otherwise.
func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(names) > 0 {
			resp.Checks = make(map[string]string, len(names))
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			for _, name := range names {
				if err := checks[name](ctx); err != nil {
					resp.Checks[name] = err.Error()
					resp.Status = "degraded"
					status = http.StatusServiceUnavailable
					continue
				}
				resp.Checks[name] = "ok"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
