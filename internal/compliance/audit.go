// Package compliance records the booking audit trail and the advisory text
// attached to specialty recommendations.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of booking audit event.
type AuditEventType string

const (
	// EventEmergencyDetected is logged when symptom text matches an emergency keyword.
	EventEmergencyDetected AuditEventType = "booking.emergency_detected"
	// EventReservationConflict is logged when a session loses a slot to another session.
	EventReservationConflict AuditEventType = "booking.reservation_conflict"
	// EventAppointmentBooked is logged when an appointment row is first created.
	EventAppointmentBooked AuditEventType = "booking.appointment_booked"
	// EventPaymentFallback is logged when checkout degrades to the mock payment page.
	EventPaymentFallback AuditEventType = "booking.payment_fallback"
	// EventReservationReleased is logged when a hold is released by the patient or an operator.
	EventReservationReleased AuditEventType = "booking.reservation_released"
)

// AuditEvent represents an immutable booking audit record.
type AuditEvent struct {
	ID            string          `json:"id"`
	EventType     AuditEventType  `json:"event_type"`
	SessionID     string          `json:"session_id"`
	AppointmentID string          `json:"appointment_id,omitempty"`
	SlotKey       string          `json:"slot_key,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	// For emergency detected
	SpecialtyCodes []string `json:"specialty_codes,omitempty"`

	// For reservation conflict / released
	ReservationID string `json:"reservation_id,omitempty"`
	ReleasedBy    string `json:"released_by,omitempty"`

	// For appointment booked
	DoctorID string `json:"doctor_id,omitempty"`
	Fee      int64  `json:"fee,omitempty"`
	Currency string `json:"currency,omitempty"`

	// For payment fallback
	Provider       string `json:"provider,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// AuditService handles booking audit logging.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// LogEvent records a booking audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if len(event.Details) == 0 {
		event.Details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO booking_audit_events (
			id, event_type, session_id, appointment_id, slot_key, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.SessionID,
		nullString(event.AppointmentID),
		nullString(event.SlotKey),
		[]byte(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}

	return nil
}

// LogEmergencyDetected logs when the symptom text triggers the emergency list.
func (s *AuditService) LogEmergencyDetected(ctx context.Context, sessionID string, specialtyCodes []string) error {
	detailsJSON, _ := json.Marshal(AuditDetails{SpecialtyCodes: specialtyCodes})

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventEmergencyDetected,
		SessionID: sessionID,
		Details:   detailsJSON,
	})
}

// LogReservationConflict logs when a reserve attempt loses to another session.
func (s *AuditService) LogReservationConflict(ctx context.Context, sessionID, slotKey string) error {
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventReservationConflict,
		SessionID: sessionID,
		SlotKey:   slotKey,
	})
}

// LogReservationReleased logs an explicit hold release.
func (s *AuditService) LogReservationReleased(ctx context.Context, sessionID, slotKey, reservationID, releasedBy string) error {
	detailsJSON, _ := json.Marshal(AuditDetails{ReservationID: reservationID, ReleasedBy: releasedBy})

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventReservationReleased,
		SessionID: sessionID,
		SlotKey:   slotKey,
		Details:   detailsJSON,
	})
}

// LogAppointmentBooked logs the first creation of an appointment.
func (s *AuditService) LogAppointmentBooked(ctx context.Context, sessionID, appointmentID, slotKey, doctorID string, fee int64, currency string) error {
	detailsJSON, _ := json.Marshal(AuditDetails{DoctorID: doctorID, Fee: fee, Currency: currency})

	return s.LogEvent(ctx, AuditEvent{
		EventType:     EventAppointmentBooked,
		SessionID:     sessionID,
		AppointmentID: appointmentID,
		SlotKey:       slotKey,
		Details:       detailsJSON,
	})
}

// LogPaymentFallback logs when checkout degrades to the mock payment page.
func (s *AuditService) LogPaymentFallback(ctx context.Context, sessionID, appointmentID, provider, reason string) error {
	detailsJSON, _ := json.Marshal(AuditDetails{Provider: provider, FallbackReason: reason})

	return s.LogEvent(ctx, AuditEvent{
		EventType:     EventPaymentFallback,
		SessionID:     sessionID,
		AppointmentID: appointmentID,
		Details:       detailsJSON,
	})
}

// QueryEvents retrieves audit events with filters.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT id, event_type, session_id, appointment_id, slot_key, details, created_at
		FROM booking_audit_events
		WHERE 1 = 1
	`
	var args []interface{}
	argIdx := 1

	if filter.SessionID != "" {
		query += fmt.Sprintf(" AND session_id = $%d", argIdx)
		args = append(args, filter.SessionID)
		argIdx++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var apptID, slotKey sql.NullString
		var details []byte
		if err := rows.Scan(&e.ID, &e.EventType, &e.SessionID, &apptID, &slotKey, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.AppointmentID = apptID.String
		e.SlotKey = slotKey.String
		e.Details = json.RawMessage(details)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: failed to iterate audit events: %w", err)
	}

	return events, nil
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	SessionID string
	EventType AuditEventType
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
