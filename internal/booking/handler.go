package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/hospital-booking/internal/observability/metrics"
	"github.com/wolfman30/hospital-booking/internal/patients"
	"github.com/wolfman30/hospital-booking/internal/reservations"
	"github.com/wolfman30/hospital-booking/pkg/logging"
)

const maxChatBody = 1 << 20

// Step names a booking chat step.
type Step string

const (
	StepSymptomAnalysis Step = "symptom_analysis"
	StepGetDoctors      Step = "get_doctors"
	StepGetTimeSlots    Step = "get_time_slots"
	StepReserveSlot     Step = "reserve_slot"
	StepBookingSummary  Step = "generate_booking_summary"
	StepCancelBooking   Step = "cancel_booking"
)

// ChatRequest is the wire form of POST /api/booking/chat.
type ChatRequest struct {
	Step      string          `json:"step"`
	Message   string          `json:"message"`
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id"`
	Metadata  json.RawMessage `json:"metadata"`
}

// Response is the envelope of every booking endpoint.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// StepRecorder receives per-step outcomes for metrics.
type StepRecorder interface {
	ObserveStep(step, outcome string, elapsed time.Duration)
}

// stepRequest is a decoded step; each variant knows which orchestrator
// operation serves it.
type stepRequest interface {
	run(ctx context.Context, o *Orchestrator) (any, error)
}

func (r SymptomRequest) run(ctx context.Context, o *Orchestrator) (any, error) {
	return o.AnalyzeSymptoms(ctx, r)
}

func (r DoctorsRequest) run(ctx context.Context, o *Orchestrator) (any, error) {
	return o.GetDoctors(ctx, r)
}

func (r SlotsRequest) run(ctx context.Context, o *Orchestrator) (any, error) {
	return o.GetTimeSlots(ctx, r)
}

func (r ReserveRequest) run(ctx context.Context, o *Orchestrator) (any, error) {
	return o.ReserveSlot(ctx, r)
}

func (r SummaryRequest) run(ctx context.Context, o *Orchestrator) (any, error) {
	return o.GenerateSummary(ctx, r)
}

func (r CancelRequest) run(ctx context.Context, o *Orchestrator) (any, error) {
	return o.CancelBooking(ctx, r)
}

// decodeStep turns the wire request into its typed step.
func decodeStep(req ChatRequest) (stepRequest, error) {
	switch Step(strings.TrimSpace(req.Step)) {
	case StepSymptomAnalysis:
		return SymptomRequest{SessionID: req.SessionID, UserID: req.UserID, Message: req.Message}, nil
	case StepGetDoctors:
		var meta struct {
			SpecialtyCode string `json:"specialty_code"`
		}
		if err := decodeMetadata(req.Metadata, &meta); err != nil {
			return nil, err
		}
		return DoctorsRequest{SessionID: req.SessionID, SpecialtyCode: meta.SpecialtyCode}, nil
	case StepGetTimeSlots:
		var meta struct {
			DoctorID    string `json:"doctor_id"`
			HorizonDays int    `json:"horizon_days"`
		}
		if err := decodeMetadata(req.Metadata, &meta); err != nil {
			return nil, err
		}
		return SlotsRequest{SessionID: req.SessionID, DoctorID: meta.DoctorID, HorizonDays: meta.HorizonDays}, nil
	case StepReserveSlot:
		var meta struct {
			DoctorID        string `json:"doctor_id"`
			AppointmentDate string `json:"appointment_date"`
			AppointmentTime string `json:"appointment_time"`
		}
		if err := decodeMetadata(req.Metadata, &meta); err != nil {
			return nil, err
		}
		return ReserveRequest{
			SessionID: req.SessionID,
			DoctorID:  meta.DoctorID,
			Date:      meta.AppointmentDate,
			Time:      meta.AppointmentTime,
		}, nil
	case StepBookingSummary:
		var meta struct {
			BookingData        BookingData            `json:"booking_data"`
			PatientInfo        patients.UpsertRequest `json:"patient_info"`
			AppointmentDetails AppointmentDetails     `json:"appointment_details"`
		}
		if err := decodeMetadata(req.Metadata, &meta); err != nil {
			return nil, err
		}
		return SummaryRequest{
			SessionID: req.SessionID,
			UserID:    req.UserID,
			Booking:   meta.BookingData,
			Patient:   meta.PatientInfo,
			Details:   meta.AppointmentDetails,
		}, nil
	case StepCancelBooking:
		var meta struct {
			ReservationID string `json:"reservation_id"`
		}
		if err := decodeMetadata(req.Metadata, &meta); err != nil {
			return nil, err
		}
		return CancelRequest{SessionID: req.SessionID, ReservationID: meta.ReservationID}, nil
	case "":
		return nil, validationf("step is required")
	default:
		return nil, validationf("unknown step %q", req.Step)
	}
}

func decodeMetadata(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return validationf("metadata is malformed: %v", err)
	}
	return nil
}

// Handler serves the booking chat endpoint and its admin views.
type Handler struct {
	orchestrator *Orchestrator
	metrics      StepRecorder
	gatherer     prometheus.Gatherer
	logger       *logging.Logger
}

func NewHandler(orchestrator *Orchestrator, recorder StepRecorder, gatherer prometheus.Gatherer, logger *logging.Logger) *Handler {
	if orchestrator == nil {
		panic("booking: orchestrator cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		orchestrator: orchestrator,
		metrics:      recorder,
		gatherer:     gatherer,
		logger:       logger,
	}
}

// HandleChat serves POST /api/booking/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		h.fail(w, "invalid", validationf("request body must be JSON: %v", err), started)
		return
	}

	step, err := decodeStep(req)
	if err != nil {
		h.fail(w, req.Step, err, started)
		return
	}

	data, err := step.run(r.Context(), h.orchestrator)
	if err != nil {
		h.fail(w, req.Step, err, started)
		return
	}
	h.observe(req.Step, "ok", started)
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func (h *Handler) fail(w http.ResponseWriter, step string, err error, started time.Time) {
	status, code := classify(err)
	h.observe(step, code, started)
	if status >= http.StatusInternalServerError {
		h.logger.Error("booking step failed", "step", step, "error", err)
	} else {
		h.logger.Info("booking step rejected", "step", step, "code", code, "error", err)
	}
	writeJSON(w, status, Response{Success: false, Error: code, Message: err.Error()})
}

func (h *Handler) observe(step, outcome string, started time.Time) {
	if h.metrics == nil {
		return
	}
	if _, known := knownSteps[Step(step)]; !known {
		step = "invalid"
	}
	h.metrics.ObserveStep(step, outcome, time.Since(started))
}

var knownSteps = map[Step]struct{}{
	StepSymptomAnalysis: {},
	StepGetDoctors:      {},
	StepGetTimeSlots:    {},
	StepReserveSlot:     {},
	StepBookingSummary:  {},
	StepCancelBooking:   {},
}

// classify maps the booking error taxonomy onto HTTP.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrExpired):
		return http.StatusGone, "reservation_expired"
	case errors.Is(err, ErrDependency):
		return http.StatusServiceUnavailable, "dependency_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// HandleGetReservation serves GET /admin/reservations/{id}.
func (h *Handler) HandleGetReservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.orchestrator.Reservation(r.Context(), id)
	if err != nil {
		h.adminError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: res})
}

// HandleReleaseReservation serves DELETE /admin/reservations/{id}.
func (h *Handler) HandleReleaseReservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.orchestrator.ReleaseReservation(r.Context(), id)
	if err != nil {
		h.adminError(w, id, err)
		return
	}
	h.logger.Info("reservation released by admin", "reservation_id", id, "status", res.Status)
	writeJSON(w, http.StatusOK, Response{Success: true, Data: res})
}

func (h *Handler) adminError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, reservations.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Response{Error: "not_found", Message: fmt.Sprintf("reservation %s not found", id)})
	case errors.Is(err, reservations.ErrConfirmed):
		writeJSON(w, http.StatusConflict, Response{Error: "conflict", Message: err.Error()})
	default:
		h.logger.Error("admin reservation request failed", "reservation_id", id, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, Response{Error: "dependency_unavailable", Message: err.Error()})
	}
}

// HandleStats serves GET /admin/booking/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: metrics.TakeSnapshot(h.gatherer)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
