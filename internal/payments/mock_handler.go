package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/hospital-booking/internal/appointments"
	"github.com/wolfman30/hospital-booking/internal/events"
	"github.com/wolfman30/hospital-booking/pkg/logging"
)

var errNotMock = errors.New("payments: appointment is not on a mock checkout")

type appointmentPayments interface {
	GetByID(ctx context.Context, id string) (*appointments.Appointment, error)
	MarkPaid(ctx context.Context, id string) error
}

// CheckoutHandler serves the mock checkout page and the processor
// return/cancel landings.
type CheckoutHandler struct {
	appointments appointmentPayments
	intents      IntentRepository
	publisher    events.Publisher
	now          func() time.Time
	logger       *logging.Logger
}

func NewCheckoutHandler(appts appointmentPayments, intents IntentRepository, logger *logging.Logger) *CheckoutHandler {
	if appts == nil || intents == nil {
		panic("payments: checkout handler requires appointment and intent stores")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CheckoutHandler{appointments: appts, intents: intents, now: time.Now, logger: logger}
}

// WithPublisher publishes appointment.paid.v1 after each mock settlement.
func (h *CheckoutHandler) WithPublisher(p events.Publisher) *CheckoutHandler {
	h.publisher = p
	return h
}

// HandleMockCheckout handles GET /payment/mock.
func (h *CheckoutHandler) HandleMockCheckout(w http.ResponseWriter, r *http.Request) {
	appointmentID := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	if appointmentID == "" {
		http.Error(w, "missing appointment_id", http.StatusBadRequest)
		return
	}
	appt, err := h.appointments.GetByID(r.Context(), appointmentID)
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("mock checkout: load appointment failed", "error", err, "appointment_id", appointmentID)
		http.Error(w, "appointment store unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Thanh toán thử nghiệm</title>
    <style>
      body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,Cantarell,Noto Sans,sans-serif;max-width:680px;margin:40px auto;padding:0 16px;}
      .card{border:1px solid #e5e7eb;border-radius:12px;padding:18px;}
      .btn{display:inline-block;background:#111827;color:#fff;padding:12px 16px;border-radius:10px;text-decoration:none;border:0;cursor:pointer;}
      .muted{color:#6b7280;font-size:14px;}
      code{background:#f3f4f6;padding:2px 6px;border-radius:6px;}
    </style>
  </head>
  <body>
    <h1>Thanh toán phí khám</h1>
    <div class="card">
      <p><strong>Bác sĩ:</strong> %s</p>
      <p><strong>Thời gian:</strong> %s %s</p>
      <p><strong>Số tiền:</strong> %s %s</p>
      <p class="muted">Trang thanh toán thử nghiệm, không có giao dịch thật.</p>
      <form method="POST" action="/payment/mock/complete">
        <input type="hidden" name="appointment_id" value="%s" />
        <button class="btn" type="submit">Xác nhận thanh toán</button>
      </form>
      <p class="muted">Mã lịch hẹn: <code>%s</code></p>
    </div>
  </body>
</html>`,
		html.EscapeString(appt.DoctorName),
		html.EscapeString(appt.Date), html.EscapeString(appt.StartTime),
		formatAmount(appt.Fee), html.EscapeString(appt.Currency),
		html.EscapeString(appt.ID), html.EscapeString(appt.ID),
	)
}

// HandleMockComplete handles POST /payment/mock/complete.
func (h *CheckoutHandler) HandleMockComplete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	appointmentID := strings.TrimSpace(r.FormValue("appointment_id"))
	if appointmentID == "" {
		http.Error(w, "missing appointment_id", http.StatusBadRequest)
		return
	}
	if err := h.completeMock(r.Context(), appointmentID); err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, errNotMock) {
			http.Error(w, "appointment is not on a mock checkout", http.StatusConflict)
			return
		}
		h.logger.Error("mock payment completion failed", "error", err, "appointment_id", appointmentID)
		http.Error(w, "failed to complete payment", http.StatusInternalServerError)
		return
	}
	q := url.Values{}
	q.Set("appointment_id", appointmentID)
	q.Set("status", "PAID")
	http.Redirect(w, r, "/payment/return?"+q.Encode(), http.StatusSeeOther)
}

func (h *CheckoutHandler) completeMock(ctx context.Context, appointmentID string) error {
	intent, err := h.intents.GetByAppointment(ctx, appointmentID)
	switch {
	case errors.Is(err, ErrIntentNotFound):
		return fmt.Errorf("%w: no checkout intent", errNotMock)
	case err != nil:
		return err
	case !intent.Mock:
		return fmt.Errorf("%w: provider %s", errNotMock, intent.Provider)
	}
	if err := h.appointments.MarkPaid(ctx, appointmentID); err != nil {
		return err
	}
	if err := h.intents.UpdateStatus(ctx, appointmentID, IntentPaid); err != nil {
		h.logger.Warn("payments: failed to mark intent paid", "error", err, "appointment_id", appointmentID)
	}
	h.logger.Info("mock payment completed", "appointment_id", appointmentID)
	h.publishPaid(ctx, intent)
	return nil
}

func (h *CheckoutHandler) publishPaid(ctx context.Context, intent *Intent) {
	if h.publisher == nil {
		return
	}
	env, err := events.NewEnvelope("appointment:"+intent.AppointmentID, intent.ID, events.AppointmentPaidV1{
		AppointmentID: intent.AppointmentID,
		Provider:      intent.Provider,
		Amount:        intent.Amount,
		PaidAt:        h.now().UTC(),
	})
	if err != nil {
		h.logger.Error("failed to build paid event", "appointment_id", intent.AppointmentID, "error", err)
		return
	}
	if err := h.publisher.Publish(ctx, env); err != nil {
		h.logger.Error("failed to publish paid event", "appointment_id", intent.AppointmentID, "error", err)
	}
}

// HandleReturn handles GET /payment/return. It reports the stored payment
// status; settlement itself is confirmed by the processor out of band.
func (h *CheckoutHandler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	h.landing(w, r, false)
}

// HandleCancel handles GET /payment/cancel and marks a pending intent cancelled.
func (h *CheckoutHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.landing(w, r, true)
}

func (h *CheckoutHandler) landing(w http.ResponseWriter, r *http.Request, cancelled bool) {
	appointmentID := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	if appointmentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "validation_error", "message": "appointment_id is required"})
		return
	}
	appt, err := h.appointments.GetByID(r.Context(), appointmentID)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, appointments.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]any{"success": false, "error": "appointment_unavailable", "message": err.Error()})
		return
	}

	intentStatus := ""
	if intent, err := h.intents.GetByAppointment(r.Context(), appointmentID); err == nil {
		intentStatus = intent.Status
		if cancelled && intent.Status == IntentPending {
			if err := h.intents.UpdateStatus(r.Context(), appointmentID, IntentCancelled); err != nil {
				h.logger.Warn("payments: failed to cancel intent", "error", err, "appointment_id", appointmentID)
			} else {
				intentStatus = IntentCancelled
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"appointment_id":   appt.ID,
			"payment_status":   appt.PaymentStatus,
			"intent_status":    intentStatus,
			"processor_status": r.URL.Query().Get("status"),
			"cancelled":        cancelled,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// formatAmount renders 200000 as 200.000.
func formatAmount(v int64) string {
	s := strconv.FormatInt(v, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
