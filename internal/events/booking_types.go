package events

import "time"

// AppointmentBookedV1 is published once per newly created appointment.
type AppointmentBookedV1 struct {
	AppointmentID string    `json:"appointment_id"`
	SessionID     string    `json:"session_id"`
	PatientID     string    `json:"patient_id"`
	PatientName   string    `json:"patient_name,omitempty"`
	PatientEmail  string    `json:"patient_email,omitempty"`
	PatientPhone  string    `json:"patient_phone,omitempty"`
	DoctorID      string    `json:"doctor_id"`
	DoctorName    string    `json:"doctor_name"`
	SpecialtyCode string    `json:"specialty_code"`
	Symptoms      string    `json:"symptoms,omitempty"`
	Date          string    `json:"appointment_date"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	Fee           int64     `json:"consultation_fee"`
	Currency      string    `json:"currency"`
	PaymentURL    string    `json:"payment_url"`
	PaymentMock   bool      `json:"payment_mock"`
	BookedAt      time.Time `json:"booked_at"`
}

func (AppointmentBookedV1) EventType() string {
	return "appointment.booked.v1"
}

// AppointmentPaidV1 is published when an appointment fee is settled.
type AppointmentPaidV1 struct {
	AppointmentID string    `json:"appointment_id"`
	Provider      string    `json:"provider"`
	Amount        int64     `json:"amount"`
	PaidAt        time.Time `json:"paid_at"`
}

func (AppointmentPaidV1) EventType() string {
	return "appointment.paid.v1"
}
