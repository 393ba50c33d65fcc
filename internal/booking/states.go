package booking

import (
	"time"

	"github.com/wolfman30/hospital-booking/internal/appointments"
	"github.com/wolfman30/hospital-booking/internal/directory"
	"github.com/wolfman30/hospital-booking/internal/patients"
	"github.com/wolfman30/hospital-booking/internal/payments"
	"github.com/wolfman30/hospital-booking/internal/reservations"
	"github.com/wolfman30/hospital-booking/internal/slots"
	"github.com/wolfman30/hospital-booking/internal/triage"
)

// Phase names a workflow state in persisted snapshots.
type Phase string

const (
	PhaseStarted           Phase = "started"
	PhaseSpecialtySelected Phase = "specialty_selected"
	PhaseDoctorSelected    Phase = "doctor_selected"
	PhaseSlotSelected      Phase = "slot_selected"
	PhaseReserved          Phase = "reserved"
	PhaseSummarized        Phase = "summarized"
	PhasePaymentCreated    Phase = "payment_created"
	PhaseAbandoned         Phase = "abandoned"
)

const (
	AbandonExpired   = "reservation_expired"
	AbandonCancelled = "cancelled"
	AbandonReleased  = "reservation_released"
)

// Each state keeps the state it came from in Prev. Transitions are methods
// on the one state they are legal from, so Prev is a named field rather than
// an embedding that would promote earlier transitions.

// Started is a session that may carry a symptom analysis.
type Started struct {
	SessionID string
	UserID    string
	Symptoms  string
	Analysis  triage.Analysis
}

// Start opens a session.
func Start(sessionID, userID string) Started {
	return Started{SessionID: sessionID, UserID: userID}
}

// Analyze records the classifier output for the latest symptom text.
func (s Started) Analyze(symptoms string, analysis triage.Analysis) Started {
	s.Symptoms = symptoms
	s.Analysis = analysis
	return s
}

// SelectSpecialty moves to SpecialtySelected.
func (s Started) SelectSpecialty(code, name string) SpecialtySelected {
	return SpecialtySelected{Prev: s, Code: code, Name: name}
}

// SpecialtySelected is a session browsing doctors of one specialty.
type SpecialtySelected struct {
	Prev Started
	Code string
	Name string
}

// SelectDoctor moves to DoctorSelected.
func (s SpecialtySelected) SelectDoctor(d directory.Doctor) DoctorSelected {
	return DoctorSelected{Prev: s, Doctor: d}
}

// DoctorSelected is a session browsing one doctor's slots.
type DoctorSelected struct {
	Prev   SpecialtySelected
	Doctor directory.Doctor
}

// SelectSlot moves to SlotSelected.
func (s DoctorSelected) SelectSlot(slot slots.Slot) SlotSelected {
	return SlotSelected{Prev: s, Slot: slot}
}

// SlotSelected is a session that picked a slot but holds nothing yet.
type SlotSelected struct {
	Prev DoctorSelected
	Slot slots.Slot
}

// Hold moves to Reserved once the reservation manager granted r.
func (s SlotSelected) Hold(r reservations.Reservation) Reserved {
	return Reserved{Prev: s, Reservation: r}
}

// Reserved is a session holding a slot until the reservation expires.
type Reserved struct {
	Prev        SlotSelected
	Reservation reservations.Reservation
}

func (s Reserved) Session() string          { return s.Prev.Prev.Prev.Prev.SessionID }
func (s Reserved) Symptoms() string         { return s.Prev.Prev.Prev.Prev.Symptoms }
func (s Reserved) Slot() slots.Slot         { return s.Prev.Slot }
func (s Reserved) Doctor() directory.Doctor { return s.Prev.Prev.Doctor }

// Summarize moves to Summarized after the appointment was persisted against
// the confirmed reservation.
func (s Reserved) Summarize(confirmed reservations.Reservation, p patients.Patient, a appointments.Appointment) Summarized {
	s.Reservation = confirmed
	return Summarized{Prev: s, Patient: p, Appointment: a}
}

// Expire abandons the session because its hold lapsed.
func (s Reserved) Expire() Abandoned {
	return Abandoned{SessionID: s.Session(), UserID: s.Prev.Prev.Prev.Prev.UserID, Reason: AbandonExpired, Reservation: s.Reservation}
}

// Cancel abandons the session after its hold was released.
func (s Reserved) Cancel(released reservations.Reservation) Abandoned {
	return Abandoned{SessionID: s.Session(), UserID: s.Prev.Prev.Prev.Prev.UserID, Reason: AbandonCancelled, Reservation: released}
}

// Summarized is a session with a persisted appointment awaiting checkout.
type Summarized struct {
	Prev        Reserved
	Patient     patients.Patient
	Appointment appointments.Appointment
}

// AttachPayment moves to PaymentCreated.
func (s Summarized) AttachPayment(c payments.Checkout) PaymentCreated {
	s.Appointment.PaymentURL = c.URL
	s.Appointment.PaymentRef = c.ProviderRef
	return PaymentCreated{Prev: s, Checkout: c}
}

// PaymentCreated is the final state of a successful booking.
type PaymentCreated struct {
	Prev     Summarized
	Checkout payments.Checkout
}

// Abandoned is terminal for the current booking attempt. Running an earlier
// step starts a new attempt on the same session.
type Abandoned struct {
	SessionID   string
	UserID      string
	Reason      string
	Reservation reservations.Reservation
}

// Abandon ends a session that holds no reservation.
func Abandon(sessionID, userID, reason string) Abandoned {
	return Abandoned{SessionID: sessionID, UserID: userID, Reason: reason}
}

// Snapshot is the persisted form of any state.
type Snapshot struct {
	SessionID       string                    `json:"session_id"`
	UserID          string                    `json:"user_id,omitempty"`
	Phase           Phase                     `json:"phase"`
	Symptoms        string                    `json:"symptoms,omitempty"`
	Analysis        *triage.Analysis          `json:"analysis,omitempty"`
	SpecialtyCode   string                    `json:"specialty_code,omitempty"`
	SpecialtyName   string                    `json:"specialty_name,omitempty"`
	Doctor          *directory.Doctor         `json:"doctor,omitempty"`
	Slot            *slots.Slot               `json:"slot,omitempty"`
	Reservation     *reservations.Reservation `json:"reservation,omitempty"`
	Patient         *patients.Patient         `json:"patient,omitempty"`
	Appointment     *appointments.Appointment `json:"appointment,omitempty"`
	Checkout        *payments.Checkout        `json:"checkout,omitempty"`
	AbandonedReason string                    `json:"abandoned_reason,omitempty"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

func (s Started) Snapshot() Snapshot {
	snap := Snapshot{SessionID: s.SessionID, UserID: s.UserID, Phase: PhaseStarted, Symptoms: s.Symptoms}
	if len(s.Analysis.Recommendations) > 0 {
		a := s.Analysis
		snap.Analysis = &a
	}
	return snap
}

func (s SpecialtySelected) Snapshot() Snapshot {
	snap := s.Prev.Snapshot()
	snap.Phase = PhaseSpecialtySelected
	snap.SpecialtyCode = s.Code
	snap.SpecialtyName = s.Name
	return snap
}

func (s DoctorSelected) Snapshot() Snapshot {
	snap := s.Prev.Snapshot()
	snap.Phase = PhaseDoctorSelected
	d := s.Doctor
	snap.Doctor = &d
	return snap
}

func (s SlotSelected) Snapshot() Snapshot {
	snap := s.Prev.Snapshot()
	snap.Phase = PhaseSlotSelected
	slot := s.Slot
	snap.Slot = &slot
	return snap
}

func (s Reserved) Snapshot() Snapshot {
	snap := s.Prev.Snapshot()
	snap.Phase = PhaseReserved
	r := s.Reservation
	snap.Reservation = &r
	return snap
}

func (s Summarized) Snapshot() Snapshot {
	snap := s.Prev.Snapshot()
	snap.Phase = PhaseSummarized
	p, a := s.Patient, s.Appointment
	snap.Patient = &p
	snap.Appointment = &a
	return snap
}

func (s PaymentCreated) Snapshot() Snapshot {
	snap := s.Prev.Snapshot()
	snap.Phase = PhasePaymentCreated
	c := s.Checkout
	snap.Checkout = &c
	return snap
}

func (s Abandoned) Snapshot() Snapshot {
	snap := Snapshot{SessionID: s.SessionID, UserID: s.UserID, Phase: PhaseAbandoned, AbandonedReason: s.Reason}
	if s.Reservation.ID != "" {
		r := s.Reservation
		snap.Reservation = &r
	}
	return snap
}

// started restores the Started prefix of any snapshot. An abandoned
// snapshot restores an empty session.
func (s Snapshot) started() Started {
	st := Start(s.SessionID, s.UserID)
	if s.Phase == PhaseAbandoned {
		return st
	}
	st.Symptoms = s.Symptoms
	if s.Analysis != nil {
		st.Analysis = *s.Analysis
	}
	return st
}

func (s Snapshot) specialtySelected() (SpecialtySelected, bool) {
	if s.Phase == PhaseAbandoned || s.SpecialtyCode == "" {
		return SpecialtySelected{}, false
	}
	return s.started().SelectSpecialty(s.SpecialtyCode, s.SpecialtyName), true
}

func (s Snapshot) doctorSelected() (DoctorSelected, bool) {
	sel, ok := s.specialtySelected()
	if !ok || s.Doctor == nil {
		return DoctorSelected{}, false
	}
	return sel.SelectDoctor(*s.Doctor), true
}

func (s Snapshot) hold() (Reserved, bool) {
	doc, ok := s.doctorSelected()
	if !ok || s.Slot == nil || s.Reservation == nil {
		return Reserved{}, false
	}
	return doc.SelectSlot(*s.Slot).Hold(*s.Reservation), true
}

// reserved restores a session whose current state is Reserved.
func (s Snapshot) reserved() (Reserved, bool) {
	if s.Phase != PhaseReserved {
		return Reserved{}, false
	}
	return s.hold()
}

// summarized restores the Summarized state of a session that reached it,
// including sessions already past it.
func (s Snapshot) summarized() (Summarized, bool) {
	if s.Phase != PhaseSummarized && s.Phase != PhasePaymentCreated {
		return Summarized{}, false
	}
	res, ok := s.hold()
	if !ok || s.Appointment == nil {
		return Summarized{}, false
	}
	var p patients.Patient
	if s.Patient != nil {
		p = *s.Patient
	}
	return Summarized{Prev: res, Patient: p, Appointment: *s.Appointment}, true
}

func (s Snapshot) paymentCreated() (PaymentCreated, bool) {
	sum, ok := s.summarized()
	if !ok || s.Phase != PhasePaymentCreated || s.Checkout == nil {
		return PaymentCreated{}, false
	}
	return PaymentCreated{Prev: sum, Checkout: *s.Checkout}, true
}

// heldReservation returns the reservation a session still holds. Only the
// Reserved phase holds one; later phases confirmed it.
func (s Snapshot) heldReservation() (reservations.Reservation, bool) {
	if s.Phase != PhaseReserved || s.Reservation == nil {
		return reservations.Reservation{}, false
	}
	return *s.Reservation, true
}
