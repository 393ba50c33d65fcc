// Package booking drives the conversational booking workflow from symptom
// analysis to payment handoff.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/hospital-booking/internal/appointments"
	"github.com/wolfman30/hospital-booking/internal/compliance"
	"github.com/wolfman30/hospital-booking/internal/directory"
	"github.com/wolfman30/hospital-booking/internal/events"
	"github.com/wolfman30/hospital-booking/internal/keylock"
	"github.com/wolfman30/hospital-booking/internal/patients"
	"github.com/wolfman30/hospital-booking/internal/payments"
	"github.com/wolfman30/hospital-booking/internal/reservations"
	"github.com/wolfman30/hospital-booking/internal/slots"
	"github.com/wolfman30/hospital-booking/internal/triage"
	"github.com/wolfman30/hospital-booking/pkg/logging"
)

const (
	DefaultConsultationFee int64 = 200000
	DefaultCurrency              = "VND"
	maxHorizonDays               = 60
)

var bookingTracer = otel.Tracer("hospital.internal.booking")

// Auditor records compliance-relevant booking events.
type Auditor interface {
	LogEmergencyDetected(ctx context.Context, sessionID string, specialtyCodes []string) error
	LogReservationConflict(ctx context.Context, sessionID, slotKey string) error
	LogReservationReleased(ctx context.Context, sessionID, slotKey, reservationID, releasedBy string) error
	LogAppointmentBooked(ctx context.Context, sessionID, appointmentID, slotKey, doctorID string, fee int64, currency string) error
	LogPaymentFallback(ctx context.Context, sessionID, appointmentID, provider, reason string) error
}

// CheckoutGateway creates checkouts and never fails; see payments.Gateway.
type CheckoutGateway interface {
	CreateCheckout(ctx context.Context, params payments.CheckoutParams) payments.Checkout
	ProviderName() string
}

// Advisor supplies the advisory text shown with specialty recommendations.
type Advisor interface {
	Advisory(emergency bool) string
}

// Config wires the orchestrator's collaborators. Directory, Slots,
// Reservations, Patients, Appointments, Intents and Gateway are required.
type Config struct {
	Directory    *directory.Lookup
	Slots        *slots.Generator
	Reservations *reservations.Manager
	Patients     patients.Repository
	Appointments appointments.Repository
	Intents      payments.IntentRepository
	Gateway      CheckoutGateway
	Sessions     SessionStore
	Publisher    events.Publisher
	Audit        Auditor
	Advisor      Advisor

	HorizonDays     int
	ConsultationFee int64
	Currency        string
	Logger          *logging.Logger
}

// Orchestrator runs booking steps against per-session workflow state.
type Orchestrator struct {
	directory    *directory.Lookup
	slots        *slots.Generator
	reservations *reservations.Manager
	patients     patients.Repository
	appointments appointments.Repository
	intents      payments.IntentRepository
	gateway      CheckoutGateway
	sessions     SessionStore
	publisher    events.Publisher
	audit        Auditor
	advisor      Advisor
	locks        *keylock.Striped

	horizonDays int
	fee         int64
	currency    string
	logger      *logging.Logger
}

func NewOrchestrator(cfg Config) *Orchestrator {
	switch {
	case cfg.Directory == nil:
		panic("booking: directory lookup cannot be nil")
	case cfg.Slots == nil:
		panic("booking: slot generator cannot be nil")
	case cfg.Reservations == nil:
		panic("booking: reservation manager cannot be nil")
	case cfg.Patients == nil:
		panic("booking: patient repository cannot be nil")
	case cfg.Appointments == nil:
		panic("booking: appointment repository cannot be nil")
	case cfg.Intents == nil:
		panic("booking: payment intent repository cannot be nil")
	case cfg.Gateway == nil:
		panic("booking: checkout gateway cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Sessions == nil {
		cfg.Sessions = NewMemorySessionStore(DefaultSessionTTL)
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NewLogPublisher(cfg.Logger)
	}
	if cfg.Audit == nil {
		cfg.Audit = noopAuditor{}
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = slots.DefaultHorizonDays
	}
	if cfg.ConsultationFee <= 0 {
		cfg.ConsultationFee = DefaultConsultationFee
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		cfg.Currency = DefaultCurrency
	}
	return &Orchestrator{
		directory:    cfg.Directory,
		slots:        cfg.Slots,
		reservations: cfg.Reservations,
		patients:     cfg.Patients,
		appointments: cfg.Appointments,
		intents:      cfg.Intents,
		gateway:      cfg.Gateway,
		sessions:     cfg.Sessions,
		publisher:    cfg.Publisher,
		audit:        cfg.Audit,
		advisor:      cfg.Advisor,
		locks:        keylock.New(0),
		horizonDays:  cfg.HorizonDays,
		fee:          cfg.ConsultationFee,
		currency:     strings.ToUpper(cfg.Currency),
		logger:       cfg.Logger,
	}
}

// SymptomRequest is the symptom_analysis step.
type SymptomRequest struct {
	SessionID string
	UserID    string
	Message   string
}

type SymptomResult struct {
	SessionID         string                  `json:"session_id"`
	Recommendations   []triage.Recommendation `json:"recommended_specialties"`
	EmergencyDetected bool                    `json:"emergency_detected"`
	Advisory          string                  `json:"advisory,omitempty"`
}

// AnalyzeSymptoms classifies the message and (re)starts the session. A
// blank session id is replaced with a new one.
func (o *Orchestrator) AnalyzeSymptoms(ctx context.Context, req SymptomRequest) (SymptomResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return SymptomResult{}, validationf("message is required")
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	ctx, span := o.startSpan(ctx, "booking.symptom_analysis", sessionID)
	defer span.End()

	analysis := triage.Analyze(message)
	span.SetAttributes(
		attribute.Bool("hospital.emergency", analysis.EmergencyDetected),
		attribute.String("hospital.specialty_code", analysis.Recommendations[0].SpecialtyCode),
	)

	unlock := o.locks.Lock(sessionID)
	defer unlock()

	snap, err := o.load(ctx, sessionID)
	if err != nil {
		return SymptomResult{}, err
	}
	o.releaseHeld(ctx, snap, "")

	started := snap.started()
	if req.UserID != "" {
		started.UserID = req.UserID
	}
	started = started.Analyze(message, analysis)
	if err := o.save(ctx, started.Snapshot()); err != nil {
		return SymptomResult{}, err
	}

	if analysis.EmergencyDetected {
		codes := make([]string, 0, len(analysis.Recommendations))
		for _, rec := range analysis.Recommendations {
			codes = append(codes, rec.SpecialtyCode)
		}
		o.logger.Warn("emergency symptoms detected", "session_id", sessionID, "specialty_codes", codes)
		if err := o.audit.LogEmergencyDetected(ctx, sessionID, codes); err != nil {
			o.logger.Error("failed to audit emergency", "session_id", sessionID, "error", err)
		}
	}

	result := SymptomResult{
		SessionID:         sessionID,
		Recommendations:   analysis.Recommendations,
		EmergencyDetected: analysis.EmergencyDetected,
	}
	if o.advisor != nil {
		result.Advisory = o.advisor.Advisory(analysis.EmergencyDetected)
	}
	return result, nil
}

// DoctorsRequest is the get_doctors step.
type DoctorsRequest struct {
	SessionID     string
	SpecialtyCode string
}

type DoctorsResult struct {
	SessionID            string             `json:"session_id"`
	SpecialtyCode        string             `json:"specialty_code"`
	SpecialtyName        string             `json:"specialty_name,omitempty"`
	Doctors              []directory.Doctor `json:"doctors"`
	Synthetic            bool               `json:"synthetic"`
	DirectoryUnavailable bool               `json:"directory_unavailable,omitempty"`
	Retryable            bool               `json:"retryable,omitempty"`
}

// GetDoctors lists doctors for a specialty. A directory outage degrades to
// the placeholder set instead of failing.
func (o *Orchestrator) GetDoctors(ctx context.Context, req DoctorsRequest) (DoctorsResult, error) {
	sessionID, err := requireSession(req.SessionID)
	if err != nil {
		return DoctorsResult{}, err
	}
	code := strings.ToUpper(strings.TrimSpace(req.SpecialtyCode))
	if code == "" {
		return DoctorsResult{}, validationf("metadata.specialty_code is required")
	}
	ctx, span := o.startSpan(ctx, "booking.get_doctors", sessionID)
	defer span.End()
	span.SetAttributes(attribute.String("hospital.specialty_code", code))

	out := DoctorsResult{SessionID: sessionID, SpecialtyCode: code}
	if specialty, ok := triage.Lookup(code); ok {
		out.SpecialtyName = specialty.Name
	}

	res, err := o.directory.FindDoctors(ctx, code)
	switch {
	case err == nil:
		out.Doctors = res.Doctors
		out.Synthetic = res.Synthetic
	case errors.Is(err, directory.ErrUnavailable):
		span.RecordError(err)
		o.logger.Warn("directory unavailable, returning placeholders", "session_id", sessionID, "specialty_code", code, "error", err)
		out.Doctors = directory.Placeholders(code)
		out.Synthetic = true
		out.DirectoryUnavailable = true
		out.Retryable = true
	default:
		return DoctorsResult{}, validationf("%v", err)
	}
	if out.SpecialtyName == "" && len(out.Doctors) > 0 {
		out.SpecialtyName = out.Doctors[0].SpecialtyName
	}

	unlock := o.locks.Lock(sessionID)
	defer unlock()

	snap, err := o.load(ctx, sessionID)
	if err != nil {
		return DoctorsResult{}, err
	}
	o.releaseHeld(ctx, snap, "")
	if err := o.save(ctx, snap.started().SelectSpecialty(code, out.SpecialtyName).Snapshot()); err != nil {
		return DoctorsResult{}, err
	}
	return out, nil
}

// SlotsRequest is the get_time_slots step. HorizonDays overrides the
// configured horizon when positive.
type SlotsRequest struct {
	SessionID   string
	DoctorID    string
	HorizonDays int
}

type SlotsResult struct {
	SessionID            string       `json:"session_id"`
	DoctorID             string       `json:"doctor_id"`
	AvailableSlots       []slots.Slot `json:"available_slots"`
	TotalAvailable       int          `json:"total_available"`
	HorizonDays          int          `json:"horizon_days"`
	Synthetic            bool         `json:"synthetic,omitempty"`
	DirectoryUnavailable bool         `json:"directory_unavailable,omitempty"`
}

// GetTimeSlots lists a doctor's open weekday slots, minus slots other
// sessions hold.
func (o *Orchestrator) GetTimeSlots(ctx context.Context, req SlotsRequest) (SlotsResult, error) {
	sessionID, err := requireSession(req.SessionID)
	if err != nil {
		return SlotsResult{}, err
	}
	doctorID := strings.TrimSpace(req.DoctorID)
	if doctorID == "" {
		return SlotsResult{}, validationf("metadata.doctor_id is required")
	}
	ctx, span := o.startSpan(ctx, "booking.get_time_slots", sessionID)
	defer span.End()
	span.SetAttributes(attribute.String("hospital.doctor_id", doctorID))

	horizon := o.horizonDays
	if req.HorizonDays > 0 {
		horizon = min(req.HorizonDays, maxHorizonDays)
	}
	out := SlotsResult{SessionID: sessionID, DoctorID: doctorID, HorizonDays: horizon, Synthetic: directory.IsSynthetic(doctorID)}

	doctor, err := o.directory.Doctor(ctx, doctorID)
	switch {
	case err == nil:
	case errors.Is(err, directory.ErrNotFound):
		return SlotsResult{}, validationf("unknown doctor %s", doctorID)
	default:
		span.RecordError(err)
		o.logger.Warn("doctor lookup failed, generating slots without profile", "doctor_id", doctorID, "error", err)
		doctor = directory.Doctor{ID: doctorID}
		out.DirectoryUnavailable = true
	}

	candidates := o.slots.Generate(doctorID, horizon)
	available := candidates
	if !out.Synthetic {
		filtered, err := o.reservations.FilterAvailable(ctx, candidates, sessionID)
		if err != nil {
			span.RecordError(err)
			o.logger.Warn("availability filter failed, returning unfiltered slots", "doctor_id", doctorID, "error", err)
		} else {
			available = filtered
		}
	}
	out.AvailableSlots = available
	out.TotalAvailable = len(available)

	unlock := o.locks.Lock(sessionID)
	defer unlock()

	snap, err := o.load(ctx, sessionID)
	if err != nil {
		return SlotsResult{}, err
	}
	o.releaseHeld(ctx, snap, "")
	if err := o.save(ctx, doctorState(snap, doctor).Snapshot()); err != nil {
		return SlotsResult{}, err
	}
	return out, nil
}

// ReserveRequest is the reserve_slot step.
type ReserveRequest struct {
	SessionID string
	DoctorID  string
	Date      string
	Time      string
}

type ReserveResult struct {
	SessionID     string     `json:"session_id"`
	ReservationID string     `json:"reservation_id"`
	ExpiresAt     time.Time  `json:"expires_at"`
	HoldSeconds   int        `json:"hold_seconds"`
	Slot          slots.Slot `json:"slot"`
}

// ReserveSlot places the session's hold on one slot. Holding a different
// slot releases the previous hold only after the new one is granted.
func (o *Orchestrator) ReserveSlot(ctx context.Context, req ReserveRequest) (ReserveResult, error) {
	sessionID, err := requireSession(req.SessionID)
	if err != nil {
		return ReserveResult{}, err
	}
	doctorID := strings.TrimSpace(req.DoctorID)
	date := strings.TrimSpace(req.Date)
	startTime := strings.TrimSpace(req.Time)
	for _, f := range [...]struct{ name, value string }{
		{"doctor_id", doctorID},
		{"appointment_date", date},
		{"appointment_time", startTime},
	} {
		if f.value == "" {
			return ReserveResult{}, validationf("metadata.%s is required", f.name)
		}
	}
	if directory.IsSynthetic(doctorID) {
		return ReserveResult{}, validationf("doctor %s is a placeholder and cannot be booked", doctorID)
	}
	slot, err := o.slots.Parse(doctorID, date, startTime)
	if err != nil {
		return ReserveResult{}, validationf("%v", err)
	}
	key := slot.Key()

	ctx, span := o.startSpan(ctx, "booking.reserve_slot", sessionID)
	defer span.End()
	span.SetAttributes(attribute.String("hospital.slot_key", key.String()))

	doctor, err := o.directory.Doctor(ctx, doctorID)
	switch {
	case err == nil:
	case errors.Is(err, directory.ErrNotFound):
		return ReserveResult{}, validationf("unknown doctor %s", doctorID)
	default:
		span.RecordError(err)
		return ReserveResult{}, dependency("resolve doctor", err)
	}
	if doctor.Status != "" && doctor.Status != directory.StatusAvailable {
		return ReserveResult{}, validationf("doctor %s is not accepting appointments", doctorID)
	}

	unlock := o.locks.Lock(sessionID)
	defer unlock()

	snap, err := o.load(ctx, sessionID)
	if err != nil {
		return ReserveResult{}, err
	}
	if sum, ok := snap.summarized(); ok && sum.Prev.Slot().Key() == key {
		return o.reserveResult(sessionID, sum.Prev.Reservation, sum.Prev.Slot()), nil
	}

	res, err := o.reservations.Reserve(ctx, key, sessionID)
	switch {
	case err == nil:
	case errors.Is(err, reservations.ErrConflict):
		if aerr := o.audit.LogReservationConflict(ctx, sessionID, key.String()); aerr != nil {
			o.logger.Error("failed to audit reservation conflict", "session_id", sessionID, "error", aerr)
		}
		return ReserveResult{}, fmt.Errorf("%w: %s is held by another session", ErrConflict, key)
	default:
		span.RecordError(err)
		return ReserveResult{}, dependency("reserve slot", err)
	}

	o.releaseHeld(ctx, snap, key.String())
	reserved := doctorState(snap, doctor).SelectSlot(slot).Hold(res)
	if err := o.save(ctx, reserved.Snapshot()); err != nil {
		if _, rerr := o.reservations.Release(ctx, res.ID); rerr != nil {
			o.logger.Warn("failed to release hold after session save error", "reservation_id", res.ID, "error", rerr)
		}
		return ReserveResult{}, err
	}
	return o.reserveResult(sessionID, res, slot), nil
}

func (o *Orchestrator) reserveResult(sessionID string, r reservations.Reservation, slot slots.Slot) ReserveResult {
	hold := int(o.reservations.Remaining(r).Seconds())
	return ReserveResult{
		SessionID:     sessionID,
		ReservationID: r.ID,
		ExpiresAt:     r.ExpiresAt,
		HoldSeconds:   hold,
		Slot:          slot,
	}
}

// BookingData is the booking_data block of a summary request. Every field
// is optional; present fields must match the session's reservation.
type BookingData struct {
	ReservationID string `json:"reservation_id"`
	DoctorID      string `json:"doctor_id"`
	Date          string `json:"appointment_date"`
	Time          string `json:"appointment_time"`
}

func (b BookingData) check(res Reserved) error {
	slot := res.Slot()
	switch {
	case b.ReservationID != "" && b.ReservationID != res.Reservation.ID:
		return validationf("booking_data.reservation_id does not match the session reservation")
	case b.DoctorID != "" && b.DoctorID != slot.DoctorID,
		b.Date != "" && b.Date != slot.Date,
		b.Time != "" && b.Time != slot.StartTime:
		return validationf("booking_data does not match the reserved slot %s", slot.Key())
	}
	return nil
}

// AppointmentDetails is the appointment_details block of a summary request.
type AppointmentDetails struct {
	Symptoms string `json:"symptoms"`
	Notes    string `json:"notes"`
}

// SummaryRequest is the generate_booking_summary step.
type SummaryRequest struct {
	SessionID string
	UserID    string
	Booking   BookingData
	Patient   patients.UpsertRequest
	Details   AppointmentDetails
}

type BookingSummary struct {
	AppointmentID string `json:"appointment_id"`
	PatientName   string `json:"patient_name"`
	DoctorName    string `json:"doctor_name"`
	SpecialtyName string `json:"specialty_name,omitempty"`
	Date          string `json:"appointment_date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Symptoms      string `json:"symptoms,omitempty"`
	Fee           int64  `json:"consultation_fee"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	ReservationID string `json:"reservation_id"`
}

type SummaryResult struct {
	SessionID      string                   `json:"session_id"`
	BookingSummary BookingSummary           `json:"booking_summary"`
	Appointment    appointments.Appointment `json:"appointment"`
	PaymentURL     string                   `json:"payment_url"`
	Payment        payments.Checkout        `json:"payment"`
}

// GenerateSummary books the session's held slot: it confirms the hold,
// upserts the patient, creates the appointment once per (session, slot),
// then records a checkout against it. Repeating the call returns the same
// appointment and payment URL.
func (o *Orchestrator) GenerateSummary(ctx context.Context, req SummaryRequest) (SummaryResult, error) {
	sessionID, err := requireSession(req.SessionID)
	if err != nil {
		return SummaryResult{}, err
	}
	patient := req.Patient
	patient.Normalize()
	if err := patient.Validate(); err != nil {
		return SummaryResult{}, validationf("patient_info: %v", err)
	}

	ctx, span := o.startSpan(ctx, "booking.generate_booking_summary", sessionID)
	defer span.End()

	unlock := o.locks.Lock(sessionID)
	defer unlock()

	snap, err := o.load(ctx, sessionID)
	if err != nil {
		return SummaryResult{}, err
	}

	sum, ok := snap.summarized()
	if ok {
		if err := req.Booking.check(sum.Prev); err != nil {
			return SummaryResult{}, err
		}
		if paid, ok := snap.paymentCreated(); ok {
			span.SetAttributes(attribute.Bool("hospital.idempotent_replay", true))
			return o.summaryResult(paid), nil
		}
	} else {
		res, ok := snap.reserved()
		if !ok {
			if snap.Phase == PhaseAbandoned && snap.AbandonedReason == AbandonExpired {
				return SummaryResult{}, fmt.Errorf("%w: select a new slot", ErrExpired)
			}
			return SummaryResult{}, validationf("no active reservation for session; call reserve_slot first")
		}
		if err := req.Booking.check(res); err != nil {
			return SummaryResult{}, err
		}
		sum, err = o.book(ctx, res, patient, req.Details)
		if err != nil {
			span.RecordError(err)
			return SummaryResult{}, err
		}
	}
	span.SetAttributes(attribute.String("hospital.appointment_id", sum.Appointment.ID))

	checkout, fresh, err := o.ensurePayment(ctx, sum)
	if err != nil {
		span.RecordError(err)
		return SummaryResult{}, err
	}
	paid := sum.AttachPayment(checkout)
	if err := o.save(ctx, paid.Snapshot()); err != nil {
		// The appointment and intent are durable; a retry replays from Summarized.
		o.logger.Warn("failed to persist payment state", "session_id", sessionID, "error", err)
	}
	if fresh {
		o.publishBooked(ctx, paid)
	}
	return o.summaryResult(paid), nil
}

func (o *Orchestrator) book(ctx context.Context, res Reserved, patientReq patients.UpsertRequest, details AppointmentDetails) (Summarized, error) {
	sessionID := res.Session()
	confirmed, err := o.reservations.Confirm(ctx, res.Reservation.ID)
	switch {
	case err == nil:
	case errors.Is(err, reservations.ErrExpired), errors.Is(err, reservations.ErrReleased), errors.Is(err, reservations.ErrNotFound):
		if serr := o.save(ctx, res.Expire().Snapshot()); serr != nil {
			o.logger.Warn("failed to persist abandoned session", "session_id", sessionID, "error", serr)
		}
		return Summarized{}, fmt.Errorf("%w: reservation %s is no longer held: %v", ErrExpired, res.Reservation.ID, err)
	default:
		return Summarized{}, dependency("confirm reservation", err)
	}

	patient, err := o.patients.Upsert(ctx, patientReq)
	if err != nil {
		o.reopen(ctx, res)
		return Summarized{}, dependency("upsert patient", err)
	}

	doctor := res.Doctor()
	slot := res.Slot()
	symptoms := strings.TrimSpace(details.Symptoms)
	if symptoms == "" {
		symptoms = res.Symptoms()
	}
	fee := o.feeFor(doctor)
	appt, created, err := o.appointments.CreateOnce(ctx, appointments.Appointment{
		SessionID:     sessionID,
		SlotKey:       slot.Key().String(),
		ReservationID: confirmed.ID,
		PatientID:     patient.ID,
		DoctorID:      doctor.ID,
		DoctorName:    doctor.FullName,
		SpecialtyCode: doctor.SpecialtyCode,
		Date:          slot.Date,
		StartTime:     slot.StartTime,
		EndTime:       slot.EndTime,
		Symptoms:      symptoms,
		Fee:           fee,
		Currency:      o.currency,
		Status:        appointments.StatusScheduled,
		PaymentStatus: appointments.PaymentPending,
	})
	switch {
	case err == nil:
	case errors.Is(err, appointments.ErrSlotTaken):
		o.reopen(ctx, res)
		return Summarized{}, fmt.Errorf("%w: %s is already booked", ErrConflict, slot.Key())
	default:
		o.reopen(ctx, res)
		return Summarized{}, dependency("create appointment", err)
	}

	if created {
		o.logger.Info("appointment booked",
			"session_id", sessionID,
			"appointment_id", appt.ID,
			"doctor_id", appt.DoctorID,
			"slot_key", appt.SlotKey,
			"patient_phone_hash", compliance.HashPhone(patient.Phone),
			"fee", appt.Fee,
		)
		if err := o.audit.LogAppointmentBooked(ctx, sessionID, appt.ID, appt.SlotKey, appt.DoctorID, appt.Fee, appt.Currency); err != nil {
			o.logger.Error("failed to audit booking", "appointment_id", appt.ID, "error", err)
		}
	}

	sum := res.Summarize(confirmed, *patient, *appt)
	if err := o.save(ctx, sum.Snapshot()); err != nil {
		return Summarized{}, err
	}
	return sum, nil
}

// reopen hands a confirmed hold back to the session when the booking writes
// after Confirm fail, so cancel, back-navigation and expiry still free it.
func (o *Orchestrator) reopen(ctx context.Context, res Reserved) {
	if _, err := o.reservations.Reopen(context.WithoutCancel(ctx), res.Reservation.ID); err != nil {
		o.logger.Error("failed to reopen reservation after booking failure",
			"session_id", res.Session(),
			"reservation_id", res.Reservation.ID,
			"error", err,
		)
	}
}

// ensurePayment returns the appointment's checkout, creating and recording
// one only when no intent exists yet. fresh reports a new intent.
func (o *Orchestrator) ensurePayment(ctx context.Context, sum Summarized) (payments.Checkout, bool, error) {
	appt := sum.Appointment
	existing, err := o.intents.GetByAppointment(ctx, appt.ID)
	switch {
	case err == nil && existing.CheckoutURL != "":
		return checkoutFromIntent(*existing), false, nil
	case err != nil && !errors.Is(err, payments.ErrIntentNotFound):
		return payments.Checkout{}, false, dependency("load payment intent", err)
	}

	specialty := sum.Prev.Doctor().SpecialtyName
	checkout := o.gateway.CreateCheckout(ctx, payments.CheckoutParams{
		AppointmentID: appt.ID,
		Amount:        appt.Fee,
		Currency:      appt.Currency,
		Description:   "Phi kham " + appt.Date,
		ServiceName:   strings.TrimSpace("Khám " + specialty),
		Payer: payments.Payer{
			Name:  sum.Patient.FullName,
			Email: sum.Patient.Email,
			Phone: sum.Patient.Phone,
		},
	})
	if checkout.Mock && checkout.FallbackReason != "" {
		if err := o.audit.LogPaymentFallback(ctx, sum.Prev.Session(), appt.ID, o.gateway.ProviderName(), checkout.FallbackReason); err != nil {
			o.logger.Error("failed to audit payment fallback", "appointment_id", appt.ID, "error", err)
		}
	}

	saved, err := o.intents.Save(ctx, payments.NewIntent(appt.ID, checkout))
	if err != nil {
		return payments.Checkout{}, false, dependency("save payment intent", err)
	}
	if err := o.appointments.AttachPayment(ctx, appt.ID, appointments.PaymentRef{URL: saved.CheckoutURL, Ref: saved.ProviderRef}); err != nil {
		return payments.Checkout{}, false, dependency("attach payment", err)
	}
	out := checkoutFromIntent(*saved)
	out.FallbackReason = checkout.FallbackReason
	return out, true, nil
}

func checkoutFromIntent(in payments.Intent) payments.Checkout {
	return payments.Checkout{
		URL:         in.CheckoutURL,
		Provider:    in.Provider,
		ProviderRef: in.ProviderRef,
		OrderCode:   in.OrderCode,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Mock:        in.Mock,
	}
}

func (o *Orchestrator) publishBooked(ctx context.Context, paid PaymentCreated) {
	sum := paid.Prev
	appt := sum.Appointment
	env, err := events.NewEnvelope("appointment:"+appt.ID, sum.Prev.Session(), events.AppointmentBookedV1{
		AppointmentID: appt.ID,
		SessionID:     appt.SessionID,
		PatientID:     appt.PatientID,
		PatientName:   sum.Patient.FullName,
		PatientEmail:  sum.Patient.Email,
		PatientPhone:  sum.Patient.Phone,
		DoctorID:      appt.DoctorID,
		DoctorName:    appt.DoctorName,
		SpecialtyCode: appt.SpecialtyCode,
		Symptoms:      compliance.ScrubPII(appt.Symptoms),
		Date:          appt.Date,
		StartTime:     appt.StartTime,
		EndTime:       appt.EndTime,
		Fee:           appt.Fee,
		Currency:      appt.Currency,
		PaymentURL:    paid.Checkout.URL,
		PaymentMock:   paid.Checkout.Mock,
		BookedAt:      appt.CreatedAt,
	})
	if err != nil {
		o.logger.Error("failed to build booked event", "appointment_id", appt.ID, "error", err)
		return
	}
	if err := o.publisher.Publish(ctx, env); err != nil {
		o.logger.Error("failed to publish booked event", "appointment_id", appt.ID, "error", err)
	}
}

func (o *Orchestrator) summaryResult(paid PaymentCreated) SummaryResult {
	sum := paid.Prev
	appt := sum.Appointment
	return SummaryResult{
		SessionID: sum.Prev.Session(),
		BookingSummary: BookingSummary{
			AppointmentID: appt.ID,
			PatientName:   sum.Patient.FullName,
			DoctorName:    appt.DoctorName,
			SpecialtyName: sum.Prev.Doctor().SpecialtyName,
			Date:          appt.Date,
			StartTime:     appt.StartTime,
			EndTime:       appt.EndTime,
			Symptoms:      appt.Symptoms,
			Fee:           appt.Fee,
			Currency:      appt.Currency,
			Status:        appt.Status,
			PaymentStatus: appt.PaymentStatus,
			ReservationID: appt.ReservationID,
		},
		Appointment: appt,
		PaymentURL:  paid.Checkout.URL,
		Payment:     paid.Checkout,
	}
}

// CancelRequest is the cancel_booking step.
type CancelRequest struct {
	SessionID     string
	ReservationID string
}

type CancelResult struct {
	SessionID string `json:"session_id"`
	State     Phase  `json:"state"`
	Released  bool   `json:"released"`
}

// CancelBooking releases the session's hold and abandons the attempt.
func (o *Orchestrator) CancelBooking(ctx context.Context, req CancelRequest) (CancelResult, error) {
	sessionID, err := requireSession(req.SessionID)
	if err != nil {
		return CancelResult{}, err
	}
	reservationID := strings.TrimSpace(req.ReservationID)

	ctx, span := o.startSpan(ctx, "booking.cancel_booking", sessionID)
	defer span.End()

	unlock := o.locks.Lock(sessionID)
	defer unlock()

	snap, err := o.load(ctx, sessionID)
	if err != nil {
		return CancelResult{}, err
	}
	if _, ok := snap.summarized(); ok {
		return CancelResult{}, validationf("session already has a booked appointment")
	}

	out := CancelResult{SessionID: sessionID, State: PhaseAbandoned}
	var abandoned Abandoned
	if res, ok := snap.reserved(); ok {
		if reservationID != "" && reservationID != res.Reservation.ID {
			return CancelResult{}, validationf("reservation %s is not held by this session", reservationID)
		}
		released, err := o.reservations.Release(ctx, res.Reservation.ID)
		switch {
		case err == nil, errors.Is(err, reservations.ErrNotFound):
		case errors.Is(err, reservations.ErrConfirmed):
			return CancelResult{}, validationf("reservation %s is already confirmed; repeat generate_booking_summary to finish the booking", res.Reservation.ID)
		default:
			return CancelResult{}, dependency("release reservation", err)
		}
		abandoned = res.Cancel(released)
		out.Released = released.Status == reservations.StatusReleased
		o.auditRelease(ctx, sessionID, res.Reservation.SlotKey, res.Reservation.ID, "patient")
	} else {
		if reservationID != "" {
			r, err := o.reservations.Get(ctx, reservationID)
			switch {
			case errors.Is(err, reservations.ErrNotFound):
				return CancelResult{}, validationf("unknown reservation %s", reservationID)
			case err != nil:
				return CancelResult{}, dependency("load reservation", err)
			case r.SessionID != sessionID:
				return CancelResult{}, validationf("reservation %s is not held by this session", reservationID)
			}
			released, err := o.reservations.Release(ctx, reservationID)
			if err != nil {
				if errors.Is(err, reservations.ErrConfirmed) {
					return CancelResult{}, validationf("reservation %s is already confirmed", reservationID)
				}
				return CancelResult{}, dependency("release reservation", err)
			}
			out.Released = released.Status == reservations.StatusReleased
			o.auditRelease(ctx, sessionID, r.SlotKey, r.ID, "patient")
		}
		abandoned = Abandon(sessionID, snap.UserID, AbandonCancelled)
	}

	if err := o.save(ctx, abandoned.Snapshot()); err != nil {
		return CancelResult{}, err
	}
	return out, nil
}

// Reservation returns one reservation for operators.
func (o *Orchestrator) Reservation(ctx context.Context, id string) (reservations.Reservation, error) {
	return o.reservations.Get(ctx, strings.TrimSpace(id))
}

// ReleaseReservation frees a hold on an operator's behalf.
func (o *Orchestrator) ReleaseReservation(ctx context.Context, id string) (reservations.Reservation, error) {
	r, err := o.reservations.Release(ctx, strings.TrimSpace(id))
	if err != nil {
		return r, err
	}
	if r.Status == reservations.StatusReleased {
		o.auditRelease(ctx, r.SessionID, r.SlotKey, r.ID, "admin")
	}
	return r, nil
}

func (o *Orchestrator) auditRelease(ctx context.Context, sessionID, slotKey, reservationID, by string) {
	if err := o.audit.LogReservationReleased(ctx, sessionID, slotKey, reservationID, by); err != nil {
		o.logger.Error("failed to audit release", "reservation_id", reservationID, "error", err)
	}
}

func (o *Orchestrator) feeFor(d directory.Doctor) int64 {
	if d.ConsultationFee > 0 {
		return d.ConsultationFee
	}
	return o.fee
}

// releaseHeld frees the session's hold when the session rewinds past
// Reserved. keep names a slot key the session stays on.
func (o *Orchestrator) releaseHeld(ctx context.Context, snap Snapshot, keep string) {
	held, ok := snap.heldReservation()
	if !ok || held.SlotKey == keep {
		return
	}
	if _, err := o.reservations.Release(ctx, held.ID); err != nil && !errors.Is(err, reservations.ErrNotFound) {
		o.logger.Warn("failed to release previous hold", "session_id", snap.SessionID, "reservation_id", held.ID, "error", err)
		return
	}
	o.logger.Debug("released hold on back-navigation", "session_id", snap.SessionID, "reservation_id", held.ID)
}

func (o *Orchestrator) load(ctx context.Context, sessionID string) (Snapshot, error) {
	snap, ok, err := o.sessions.Load(ctx, sessionID)
	if err != nil {
		return Snapshot{}, dependency("load session", err)
	}
	if !ok {
		return Start(sessionID, "").Snapshot(), nil
	}
	return snap, nil
}

func (o *Orchestrator) save(ctx context.Context, snap Snapshot) error {
	if err := o.sessions.Save(ctx, snap); err != nil {
		return dependency("save session", err)
	}
	return nil
}

func (o *Orchestrator) startSpan(ctx context.Context, name, sessionID string) (context.Context, trace.Span) {
	ctx, span := bookingTracer.Start(ctx, name)
	span.SetAttributes(attribute.String("hospital.session_id", sessionID))
	return ctx, span
}

// doctorState returns the DoctorSelected state for doctor, keeping the
// session's specialty when it is compatible.
func doctorState(snap Snapshot, doctor directory.Doctor) DoctorSelected {
	if d, ok := snap.doctorSelected(); ok && d.Doctor.ID == doctor.ID {
		if doctor.FullName != "" {
			d.Doctor = doctor
		}
		return d
	}
	if sel, ok := snap.specialtySelected(); ok && (doctor.SpecialtyCode == "" || strings.EqualFold(sel.Code, doctor.SpecialtyCode)) {
		return sel.SelectDoctor(doctor)
	}
	return snap.started().SelectSpecialty(doctor.SpecialtyCode, doctor.SpecialtyName).SelectDoctor(doctor)
}

func requireSession(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", validationf("session_id is required")
	}
	return id, nil
}

type noopAuditor struct{}

func (noopAuditor) LogEmergencyDetected(context.Context, string, []string) error { return nil }
func (noopAuditor) LogReservationConflict(context.Context, string, string) error  { return nil }
func (noopAuditor) LogReservationReleased(context.Context, string, string, string, string) error {
	return nil
}
func (noopAuditor) LogAppointmentBooked(context.Context, string, string, string, string, int64, string) error {
	return nil
}
func (noopAuditor) LogPaymentFallback(context.Context, string, string, string, string) error {
	return nil
}
