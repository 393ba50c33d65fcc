package compliance

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/hospital-booking/pkg/logging"
)

func TestAuditHandler_QueryBySession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2025, 2, 10, 2, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT (.+) FROM booking_audit_events WHERE 1 = 1 AND session_id = \$1 ORDER BY created_at DESC LIMIT 20`).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "event_type", "session_id", "appointment_id", "slot_key", "details", "created_at",
		}).AddRow("ev-1", string(EventAppointmentBooked), "sess-1", "appt-1", "D1|2025-02-10|09:00", []byte(`{"doctor_id":"D1"}`), created))

	h := NewAuditHandler(NewAuditService(db), logging.Discard())
	rec := httptest.NewRecorder()
	h.HandleQuery(rec, httptest.NewRequest(http.MethodGet, "/admin/audit?session_id=sess-1&limit=20", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool         `json:"success"`
		Data    []AuditEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 1)
	assert.Equal(t, EventAppointmentBooked, body.Data[0].EventType)
	assert.Equal(t, "appt-1", body.Data[0].AppointmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditHandler_RejectsBadFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	h := NewAuditHandler(NewAuditService(db), logging.Discard())

	for _, target := range []string{
		"/admin/audit?since=yesterday",
		"/admin/audit?limit=0",
		"/admin/audit?offset=-1",
	} {
		rec := httptest.NewRecorder()
		h.HandleQuery(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditHandler_StoreDown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM booking_audit_events").
		WillReturnError(errors.New("connection refused"))

	h := NewAuditHandler(NewAuditService(db), logging.Discard())
	rec := httptest.NewRecorder()
	h.HandleQuery(rec, httptest.NewRequest(http.MethodGet, "/admin/audit", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
