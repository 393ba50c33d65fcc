package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/hospital-booking/internal/appointments"
	"github.com/wolfman30/hospital-booking/internal/events"
	"github.com/wolfman30/hospital-booking/pkg/logging"
)

type capturePublisher struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (p *capturePublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envs = append(p.envs, env)
	return nil
}

func seedAppointment(t *testing.T) (*appointments.InMemoryRepository, *appointments.Appointment) {
	t.Helper()
	repo := appointments.NewInMemoryRepository()
	appt, _, err := repo.CreateOnce(context.Background(), appointments.Appointment{
		SessionID:  "s-1",
		SlotKey:    "D1|2025-02-10|09:00",
		DoctorID:   "D1",
		DoctorName: "Nguyễn Văn Minh",
		Date:       "2025-02-10",
		StartTime:  "09:00",
		EndTime:    "09:30",
		Fee:        300000,
		Currency:   "VND",
	})
	require.NoError(t, err)
	return repo, appt
}

func TestMockCheckoutPageAndCompletion(t *testing.T) {
	appts, appt := seedAppointment(t)
	intents := NewInMemoryIntentRepository()
	_, err := intents.Save(context.Background(), NewIntent(appt.ID, MockCheckout("https://hospital.example", CheckoutParams{AppointmentID: appt.ID, Amount: 300000})))
	require.NoError(t, err)
	pub := &capturePublisher{}
	h := NewCheckoutHandler(appts, intents, logging.Discard()).WithPublisher(pub)

	rec := httptest.NewRecorder()
	h.HandleMockCheckout(rec, httptest.NewRequest(http.MethodGet, "/payment/mock?appointment_id="+appt.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "300.000 VND")
	assert.Contains(t, rec.Body.String(), appt.ID)

	form := url.Values{"appointment_id": {appt.ID}}
	req := httptest.NewRequest(http.MethodPost, "/payment/mock/complete", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.HandleMockComplete(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/payment/return?")

	got, err := appts.GetByID(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appointments.PaymentPaid, got.PaymentStatus)
	intent, err := intents.GetByAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, IntentPaid, intent.Status)

	require.Len(t, pub.envs, 1)
	assert.Equal(t, "appointment.paid.v1", pub.envs[0].EventType)
	assert.Equal(t, "appointment:"+appt.ID, pub.envs[0].Aggregate)
	var paid events.AppointmentPaidV1
	require.NoError(t, json.Unmarshal(pub.envs[0].Payload, &paid))
	assert.Equal(t, appt.ID, paid.AppointmentID)
	assert.Equal(t, ProviderMock, paid.Provider)
	assert.Equal(t, int64(300000), paid.Amount)
}

func TestMockCompletionRequiresIntent(t *testing.T) {
	appts, appt := seedAppointment(t)
	pub := &capturePublisher{}
	h := NewCheckoutHandler(appts, NewInMemoryIntentRepository(), logging.Discard()).WithPublisher(pub)

	form := url.Values{"appointment_id": {appt.ID}}
	req := httptest.NewRequest(http.MethodPost, "/payment/mock/complete", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.HandleMockComplete(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	got, err := appts.GetByID(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appointments.PaymentPending, got.PaymentStatus)
	assert.Empty(t, pub.envs)
}

func TestMockCompletionRefusesProcessorCheckout(t *testing.T) {
	appts, appt := seedAppointment(t)
	intents := NewInMemoryIntentRepository()
	_, err := intents.Save(context.Background(), NewIntent(appt.ID, Checkout{URL: "https://pay.payos.vn/web/abc", Provider: ProviderPayOS, Amount: 300000}))
	require.NoError(t, err)
	h := NewCheckoutHandler(appts, intents, logging.Discard())

	form := url.Values{"appointment_id": {appt.ID}}
	req := httptest.NewRequest(http.MethodPost, "/payment/mock/complete", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.HandleMockComplete(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMockCheckoutUnknownAppointment(t *testing.T) {
	h := NewCheckoutHandler(appointments.NewInMemoryRepository(), NewInMemoryIntentRepository(), logging.Discard())
	rec := httptest.NewRecorder()
	h.HandleMockCheckout(rec, httptest.NewRequest(http.MethodGet, "/payment/mock?appointment_id=nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleMockCheckout(rec, httptest.NewRequest(http.MethodGet, "/payment/mock", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelLandingCancelsPendingIntent(t *testing.T) {
	appts, appt := seedAppointment(t)
	intents := NewInMemoryIntentRepository()
	_, err := intents.Save(context.Background(), NewIntent(appt.ID, Checkout{URL: "https://pay.payos.vn/web/abc", Provider: ProviderPayOS, Amount: 300000}))
	require.NoError(t, err)
	h := NewCheckoutHandler(appts, intents, logging.Discard())

	rec := httptest.NewRecorder()
	h.HandleCancel(rec, httptest.NewRequest(http.MethodGet, "/payment/cancel?appointment_id="+appt.ID+"&status=CANCELLED", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, IntentCancelled, body.Data["intent_status"])
	assert.Equal(t, appointments.PaymentPending, body.Data["payment_status"])

	rec = httptest.NewRecorder()
	h.HandleReturn(rec, httptest.NewRequest(http.MethodGet, "/payment/return", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
