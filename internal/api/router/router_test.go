package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/hospital-booking/internal/appointments"
	"github.com/wolfman30/hospital-booking/internal/booking"
	"github.com/wolfman30/hospital-booking/internal/compliance"
	"github.com/wolfman30/hospital-booking/internal/directory"
	httpmiddleware "github.com/wolfman30/hospital-booking/internal/http/middleware"
	"github.com/wolfman30/hospital-booking/internal/observability/metrics"
	"github.com/wolfman30/hospital-booking/internal/patients"
	"github.com/wolfman30/hospital-booking/internal/payments"
	"github.com/wolfman30/hospital-booking/internal/reservations"
	"github.com/wolfman30/hospital-booking/internal/slots"
	"github.com/wolfman30/hospital-booking/pkg/logging"
)

const testSecret = "router-secret"

func newTestRouter(t *testing.T, mutate func(*Config)) http.Handler {
	t.Helper()
	logger := logging.Discard()
	gen, err := slots.NewGenerator(slots.Config{Location: time.UTC})
	require.NoError(t, err)
	appts := appointments.NewInMemoryRepository()
	intents := payments.NewInMemoryIntentRepository()

	orch := booking.NewOrchestrator(booking.Config{
		Directory:    directory.NewLookup(directory.NewMemorySource(directory.DemoDoctors()...), 5, logger),
		Slots:        gen,
		Reservations: reservations.NewManager(reservations.NewMemoryStore(), 0, logger),
		Patients:     patients.NewInMemoryRepository(),
		Appointments: appts,
		Intents:      intents,
		Gateway:      payments.NewGateway(nil, "http://localhost:8080", 0, logger),
		Logger:       logger,
	})
	reg := prometheus.NewRegistry()
	cfg := &Config{
		Logger:          logger,
		Booking:         booking.NewHandler(orch, metrics.NewBookingMetrics(reg), reg, logger),
		Payments:        payments.NewCheckoutHandler(appts, intents, logger),
		MockCheckout:    true,
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AdminAuthSecret: testSecret,
	}
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg)
}

func chatRequest(t *testing.T, body map[string]any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/booking/chat", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp healthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestRouterHealthReportsFailingDependency(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.HealthChecks = map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		}
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var resp healthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Checks["postgres"])
	assert.Equal(t, "connection refused", resp.Checks["redis"])
}

func TestRouterBookingChat(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, chatRequest(t, map[string]any{"step": "symptom_analysis", "message": "đau đầu, chóng mặt"}))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(httpmiddleware.RequestIDHeader))
	var resp booking.Response
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Success)

	metricsRR := httptest.NewRecorder()
	router.ServeHTTP(metricsRR, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, metricsRR.Code)
	assert.Contains(t, metricsRR.Body.String(), `hospital_booking_steps_total{outcome="ok",step="symptom_analysis"} 1`)
}

func TestRouterRateLimitsBookingChat(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.RateLimiter = httpmiddleware.NewRateLimiter(0.01, 1)
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, chatRequest(t, map[string]any{"step": "symptom_analysis", "message": "ho khan"}))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, chatRequest(t, map[string]any{"step": "symptom_analysis", "message": "ho khan"}))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	health := httptest.NewRecorder()
	router.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, health.Code)
}

func operatorToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, httpmiddleware.AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ops", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
		Role:             httpmiddleware.RoleOperator,
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestRouterAdminRequiresToken(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/booking/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	signed := operatorToken(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/reservations/unknown", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/booking/stats", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterPaymentLanding(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payment/return", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payment/mock?appointment_id=missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterMockCompletionOnlyInMockMode(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) { cfg.MockCheckout = false })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/payment/mock/complete", nil))
	assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payment/mock?appointment_id=missing", nil))
	assert.Contains(t, rr.Body.String(), "appointment not found")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payment/return", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type staticAudit struct {
	filter compliance.AuditFilter
}

func (a *staticAudit) QueryEvents(_ context.Context, filter compliance.AuditFilter) ([]compliance.AuditEvent, error) {
	a.filter = filter
	return []compliance.AuditEvent{{ID: "ev-1", EventType: compliance.EventReservationReleased, SessionID: filter.SessionID}}, nil
}

func TestRouterAdminAudit(t *testing.T) {
	audit := &staticAudit{}
	router := newTestRouter(t, func(cfg *Config) {
		cfg.Audit = compliance.NewAuditHandler(audit, logging.Discard())
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/audit?session_id=s1", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/audit?session_id=s1", nil)
	req.Header.Set("Authorization", "Bearer "+operatorToken(t))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "s1", audit.filter.SessionID)
	assert.Contains(t, rr.Body.String(), string(compliance.EventReservationReleased))
}
