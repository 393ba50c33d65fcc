package compliance

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/hospital-booking/pkg/logging"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type auditQuerier interface {
	QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
}

// AuditHandler serves the booking audit trail to operators.
type AuditHandler struct {
	audit  auditQuerier
	logger *logging.Logger
}

func NewAuditHandler(audit auditQuerier, logger *logging.Logger) *AuditHandler {
	if audit == nil {
		panic("compliance: audit querier cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AuditHandler{audit: audit, logger: logger}
}

// HandleQuery serves GET /admin/audit?session_id=&event_type=&since=&until=&limit=&offset=.
func (h *AuditHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	filter, msg := parseAuditFilter(r)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "validation_error", "message": msg})
		return
	}
	events, err := h.audit.QueryEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit query failed", "session_id", filter.SessionID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "dependency_unavailable", "message": "audit store unavailable"})
		return
	}
	if events == nil {
		events = []AuditEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": events})
}

func parseAuditFilter(r *http.Request) (AuditFilter, string) {
	q := r.URL.Query()
	filter := AuditFilter{
		SessionID: strings.TrimSpace(q.Get("session_id")),
		EventType: AuditEventType(strings.TrimSpace(q.Get("event_type"))),
		Limit:     defaultAuditLimit,
	}
	for _, bound := range []struct {
		key string
		dst *time.Time
	}{{"since", &filter.StartTime}, {"until", &filter.EndTime}} {
		raw := strings.TrimSpace(q.Get(bound.key))
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return AuditFilter{}, bound.key + " must be an RFC3339 timestamp"
		}
		*bound.dst = ts
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return AuditFilter{}, "limit must be a positive integer"
		}
		filter.Limit = min(n, maxAuditLimit)
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return AuditFilter{}, "offset must be a non-negative integer"
		}
		filter.Offset = n
	}
	return filter, ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
