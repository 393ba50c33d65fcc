package reservations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/hospital-booking/internal/slots"
	"github.com/wolfman30/hospital-booking/pkg/logging"
)

var reservationsTracer = otel.Tracer("hospital.internal.reservations")

// Recorder receives reservation outcomes for metrics.
type Recorder interface {
	ObserveReservation(outcome string)
}

// Manager enforces at most one active reservation per slot key.
type Manager struct {
	store   Store
	ttl     time.Duration
	now     func() time.Time
	logger  *logging.Logger
	metrics Recorder
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.metrics = r }
}

// NewManager creates a Manager over store with the given hold TTL.
func NewManager(store Store, ttl time.Duration, logger *logging.Logger, opts ...Option) *Manager {
	if store == nil {
		panic("reservations: store required")
	}
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	m := &Manager{store: store, ttl: ttl, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HoldTTL returns the configured hold duration.
func (m *Manager) HoldTTL() time.Duration {
	return m.ttl
}

// Remaining returns how long r still blocks its slot; zero once it lapsed
// or was confirmed.
func (m *Manager) Remaining(r Reservation) time.Duration {
	if r.Status != StatusHeld {
		return 0
	}
	return max(r.ExpiresAt.Sub(m.now()), 0)
}

// Reserve places a hold on key for sessionID. A session re-reserving a key it
// already holds gets the existing hold back; any other active holder yields
// ErrConflict.
func (m *Manager) Reserve(ctx context.Context, key slots.Key, sessionID string) (Reservation, error) {
	ctx, span := reservationsTracer.Start(ctx, "reservations.reserve")
	defer span.End()
	slotKey := key.String()
	span.SetAttributes(
		attribute.String("hospital.slot_key", slotKey),
		attribute.String("hospital.session_id", sessionID),
	)

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Reservation{}, fmt.Errorf("reservations: session id required")
	}

	now := m.now().UTC()
	candidate := Reservation{
		ID:        uuid.NewString(),
		SlotKey:   slotKey,
		SessionID: sessionID,
		Status:    StatusHeld,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	holder, err := m.store.Acquire(ctx, candidate, now)
	if err != nil {
		span.RecordError(err)
		m.observe("error")
		return Reservation{}, err
	}

	switch {
	case holder.ID == candidate.ID:
		m.observe("acquired")
		m.logger.Info("slot reserved", "slot_key", slotKey, "session_id", sessionID, "reservation_id", holder.ID, "expires_at", holder.ExpiresAt)
		return holder, nil
	case holder.SessionID == sessionID && holder.Status == StatusHeld:
		m.observe("reused")
		return holder, nil
	default:
		m.observe("conflict")
		m.logger.Info("slot reservation conflict", "slot_key", slotKey, "session_id", sessionID, "holder_session_id", holder.SessionID)
		return Reservation{}, fmt.Errorf("%w: %s", ErrConflict, slotKey)
	}
}

// Confirm converts a held reservation into a confirmed one. It is idempotent
// and returns ErrExpired once the TTL has elapsed.
func (m *Manager) Confirm(ctx context.Context, id string) (Reservation, error) {
	ctx, span := reservationsTracer.Start(ctx, "reservations.confirm")
	defer span.End()
	span.SetAttributes(attribute.String("hospital.reservation_id", id))

	r, err := m.store.Confirm(ctx, id, m.now().UTC())
	switch {
	case err == nil:
		m.observe("confirmed")
		return r, nil
	case errors.Is(err, ErrExpired):
		m.observe("expired")
		m.logger.Info("reservation expired before confirm", "reservation_id", id, "slot_key", r.SlotKey)
	default:
		span.RecordError(err)
	}
	return r, err
}

// Release frees a held reservation before expiry. Releasing an already
// released or expired reservation is a no-op.
func (m *Manager) Release(ctx context.Context, id string) (Reservation, error) {
	ctx, span := reservationsTracer.Start(ctx, "reservations.release")
	defer span.End()
	span.SetAttributes(attribute.String("hospital.reservation_id", id))

	r, err := m.store.Release(ctx, id, m.now().UTC())
	if err != nil {
		span.RecordError(err)
		return r, err
	}
	if r.Status == StatusReleased {
		m.observe("released")
		m.logger.Info("reservation released", "reservation_id", id, "slot_key", r.SlotKey)
	}
	return r, nil
}

// Reopen undoes a Confirm whose booking could not be completed. The
// reservation becomes a hold again with its original expiry, so the session
// can retry or cancel and the slot frees itself once the TTL passes.
func (m *Manager) Reopen(ctx context.Context, id string) (Reservation, error) {
	ctx, span := reservationsTracer.Start(ctx, "reservations.reopen")
	defer span.End()
	span.SetAttributes(attribute.String("hospital.reservation_id", id))

	r, err := m.store.Reopen(ctx, id, m.now().UTC())
	if err != nil {
		span.RecordError(err)
		return r, err
	}
	m.observe("reopened")
	m.logger.Info("reservation reopened", "reservation_id", id, "slot_key", r.SlotKey, "status", r.Status)
	return r, nil
}

// Get returns a reservation with its effective status.
func (m *Manager) Get(ctx context.Context, id string) (Reservation, error) {
	r, err := m.store.Get(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	r.Status = r.StatusAt(m.now().UTC())
	return r, nil
}

// Holder returns the active reservation on key, if any.
func (m *Manager) Holder(ctx context.Context, key slots.Key) (Reservation, bool, error) {
	slotKey := key.String()
	holders, err := m.store.Holders(ctx, []string{slotKey}, m.now().UTC())
	if err != nil {
		return Reservation{}, false, err
	}
	r, ok := holders[slotKey]
	return r, ok, nil
}

// FilterAvailable drops candidates held by sessions other than sessionID.
func (m *Manager) FilterAvailable(ctx context.Context, candidates []slots.Slot, sessionID string) ([]slots.Slot, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	keys := make([]string, len(candidates))
	for i, s := range candidates {
		keys[i] = s.SlotKey
	}
	holders, err := m.store.Holders(ctx, keys, m.now().UTC())
	if err != nil {
		return nil, err
	}
	out := make([]slots.Slot, 0, len(candidates))
	for _, s := range candidates {
		if holder, held := holders[s.SlotKey]; held && holder.SessionID != sessionID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Sweep evicts expired holds once.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	n, err := m.store.Sweep(ctx, m.now().UTC())
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		m.observe("expired")
	}
	return n, nil
}

// RunJanitor sweeps on every tick until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil {
				m.logger.Warn("reservation sweep failed", "error", err)
				continue
			}
			if n > 0 {
				m.logger.Debug("expired reservations swept", "count", n)
			}
		}
	}
}

func (m *Manager) observe(outcome string) {
	if m.metrics != nil {
		m.metrics.ObserveReservation(outcome)
	}
}
