package appointments

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository keeps appointments in process memory.
type InMemoryRepository struct {
	mu        sync.Mutex
	byID      map[string]*Appointment
	bySession map[string]string // session|slot key -> id
	bySlot    map[string]string // slot key -> id of the active appointment
	now       func() time.Time
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:      make(map[string]*Appointment),
		bySession: make(map[string]string),
		bySlot:    make(map[string]string),
		now:       time.Now,
	}
}

func (r *InMemoryRepository) CreateOnce(_ context.Context, a Appointment) (*Appointment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionKey := a.SessionID + "|" + a.SlotKey
	if id, ok := r.bySession[sessionKey]; ok {
		cp := *r.byID[id]
		return &cp, false, nil
	}
	if _, ok := r.bySlot[a.SlotKey]; ok {
		return nil, false, ErrSlotTaken
	}

	now := r.now().UTC()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if a.PaymentStatus == "" {
		a.PaymentStatus = PaymentPending
	}
	a.CreatedAt = now
	a.UpdatedAt = now

	stored := a
	r.byID[a.ID] = &stored
	r.bySession[sessionKey] = a.ID
	r.bySlot[a.SlotKey] = a.ID
	return &a, true, nil
}

func (r *InMemoryRepository) AttachPayment(_ context.Context, id string, ref PaymentRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	a.PaymentURL = ref.URL
	a.PaymentRef = ref.Ref
	a.UpdatedAt = r.now().UTC()
	return nil
}

func (r *InMemoryRepository) MarkPaid(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	a.PaymentStatus = PaymentPaid
	a.UpdatedAt = r.now().UTC()
	return nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// Count reports how many appointments are stored.
func (r *InMemoryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
