package booking

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/hospital-booking/internal/observability/metrics"
	"github.com/wolfman30/hospital-booking/pkg/logging"
)

type handlerFixture struct {
	*harness
	router http.Handler
	reg    *prometheus.Registry
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	h := newHarness(t)
	reg := prometheus.NewRegistry()
	handler := NewHandler(h.orch, metrics.NewBookingMetrics(reg), reg, logging.Discard())

	r := chi.NewRouter()
	r.Post("/api/booking/chat", handler.HandleChat)
	r.Get("/admin/reservations/{id}", handler.HandleGetReservation)
	r.Delete("/admin/reservations/{id}", handler.HandleReleaseReservation)
	r.Get("/admin/booking/stats", handler.HandleStats)
	return &handlerFixture{harness: h, router: r, reg: reg}
}

func (f *handlerFixture) chat(t *testing.T, body any) (int, map[string]any) {
	t.Helper()
	var raw []byte
	switch v := body.(type) {
	case string:
		raw = []byte(v)
	default:
		var err error
		raw, err = json.Marshal(v)
		require.NoError(t, err)
	}
	return f.do(t, http.MethodPost, "/api/booking/chat", raw)
}

func (f *handlerFixture) do(t *testing.T, method, path string, body []byte) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func reserveBody(sessionID string) map[string]any {
	return map[string]any{
		"step":       "reserve_slot",
		"session_id": sessionID,
		"metadata": map[string]any{
			"doctor_id":        "D1",
			"appointment_date": "2025-02-10",
			"appointment_time": "09:00",
		},
	}
}

func TestHandleChatSymptomAnalysis(t *testing.T) {
	f := newHandlerFixture(t)

	code, out := f.chat(t, map[string]any{"step": "symptom_analysis", "session_id": "s1", "message": "Tôi bị đau ngực"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["success"])

	data := out["data"].(map[string]any)
	assert.Equal(t, "s1", data["session_id"])
	assert.Equal(t, true, data["emergency_detected"])
	recs := data["recommended_specialties"].([]any)
	require.NotEmpty(t, recs)
	assert.Equal(t, "CARDIOLOGY", recs[0].(map[string]any)["specialty_code"])
}

func TestHandleChatErrorMapping(t *testing.T) {
	f := newHandlerFixture(t)

	code, _ := f.chat(t, reserveBody("s1"))
	require.Equal(t, http.StatusOK, code)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"unknown step", map[string]any{"step": "dance", "session_id": "s1"}, http.StatusBadRequest, "validation_error"},
		{"missing step", map[string]any{"session_id": "s1"}, http.StatusBadRequest, "validation_error"},
		{"malformed body", "{", http.StatusBadRequest, "validation_error"},
		{"malformed metadata", `{"step":"get_doctors","session_id":"s1","metadata":"CARDIOLOGY"}`, http.StatusBadRequest, "validation_error"},
		{"missing specialty", map[string]any{"step": "get_doctors", "session_id": "s1"}, http.StatusBadRequest, "validation_error"},
		{"slot held elsewhere", reserveBody("s2"), http.StatusConflict, "conflict"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := f.chat(t, tt.body)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, false, out["success"])
			assert.Equal(t, tt.code, out["error"])
			assert.NotEmpty(t, out["message"])
		})
	}
}

func TestHandleChatExpiredReservationIsGone(t *testing.T) {
	f := newHandlerFixture(t)
	code, _ := f.chat(t, reserveBody("s1"))
	require.Equal(t, http.StatusOK, code)
	f.clock.Advance(15 * time.Minute)

	code, out := f.chat(t, map[string]any{
		"step":       "generate_booking_summary",
		"session_id": "s1",
		"metadata": map[string]any{
			"patient_info": map[string]any{"full_name": "Lê Thị Bích", "phone": "0912345678"},
		},
	})
	assert.Equal(t, http.StatusGone, code)
	assert.Equal(t, "reservation_expired", out["error"])
}

func TestHandleChatFullFlow(t *testing.T) {
	f := newHandlerFixture(t)

	code, _ := f.chat(t, map[string]any{"step": "get_doctors", "session_id": "s1", "metadata": map[string]any{"specialty_code": "CARDIOLOGY"}})
	require.Equal(t, http.StatusOK, code)
	code, _ = f.chat(t, map[string]any{"step": "get_time_slots", "session_id": "s1", "metadata": map[string]any{"doctor_id": "D1"}})
	require.Equal(t, http.StatusOK, code)
	code, out := f.chat(t, reserveBody("s1"))
	require.Equal(t, http.StatusOK, code)
	reservationID := out["data"].(map[string]any)["reservation_id"].(string)

	summary := map[string]any{
		"step":       "generate_booking_summary",
		"session_id": "s1",
		"metadata": map[string]any{
			"booking_data": map[string]any{"reservation_id": reservationID, "doctor_id": "D1"},
			"patient_info": map[string]any{"full_name": "Lê Thị Bích", "phone": "0912345678"},
		},
	}
	code, out = f.chat(t, summary)
	require.Equal(t, http.StatusOK, code)
	data := out["data"].(map[string]any)
	url := data["payment_url"].(string)
	assert.True(t, strings.Contains(url, "/payment/mock?"), url)
	booking := data["booking_summary"].(map[string]any)
	assert.Equal(t, float64(300000), booking["consultation_fee"])
	assert.Equal(t, "Nguyễn Văn Minh", booking["doctor_name"])

	code, out = f.chat(t, summary)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, url, out["data"].(map[string]any)["payment_url"])
	assert.Equal(t, 1, f.appointments.Count())

	code, out = f.do(t, http.MethodGet, "/admin/booking/stats", nil)
	require.Equal(t, http.StatusOK, code)
	steps := out["data"].(map[string]any)["steps"].(map[string]any)
	assert.Equal(t, float64(2), steps["generate_booking_summary"].(map[string]any)["ok"])
}

func TestAdminReservationRoutes(t *testing.T) {
	f := newHandlerFixture(t)
	_, out := f.chat(t, reserveBody("s1"))
	id := out["data"].(map[string]any)["reservation_id"].(string)

	code, out := f.do(t, http.MethodGet, "/admin/reservations/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "held", out["data"].(map[string]any)["status"])

	code, out = f.do(t, http.MethodDelete, "/admin/reservations/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "released", out["data"].(map[string]any)["status"])

	code, out = f.do(t, http.MethodGet, "/admin/reservations/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", out["error"])

	// The released slot is bookable again.
	code, _ = f.chat(t, reserveBody("s2"))
	assert.Equal(t, http.StatusOK, code)
}
