package patients

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the patient store consumed by the booking flow.
type Repository interface {
	// Upsert returns the existing patient for the request's contact key,
	// refreshed with any non-empty fields, or creates one.
	Upsert(ctx context.Context, req UpsertRequest) (*Patient, error)
	GetByID(ctx context.Context, id string) (*Patient, error)
}

// InMemoryRepository keeps patients in process memory.
type InMemoryRepository struct {
	mu        sync.Mutex
	byID      map[string]*Patient
	byContact map[string]string
	now       func() time.Time
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:      make(map[string]*Patient),
		byContact: make(map[string]string),
		now:       time.Now,
	}
}

func (r *InMemoryRepository) Upsert(_ context.Context, req UpsertRequest) (*Patient, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := ContactKey(req.Email, req.Phone)
	now := r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byContact[key]; ok {
		p := r.byID[id]
		merge(p, req)
		p.UpdatedAt = now
		cp := *p
		return &cp, nil
	}
	p := &Patient{
		ID:          uuid.New().String(),
		FullName:    req.FullName,
		Email:       req.Email,
		Phone:       req.Phone,
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
		Address:     req.Address,
		ContactKey:  key,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.byID[p.ID] = p
	r.byContact[key] = p.ID
	cp := *p
	return &cp, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// Count reports how many distinct patients are stored.
func (r *InMemoryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func merge(p *Patient, req UpsertRequest) {
	p.FullName = req.FullName
	if req.Email != "" {
		p.Email = req.Email
	}
	if req.Phone != "" {
		p.Phone = req.Phone
	}
	if req.DateOfBirth != "" {
		p.DateOfBirth = req.DateOfBirth
	}
	if req.Gender != "" {
		p.Gender = req.Gender
	}
	if req.Address != "" {
		p.Address = req.Address
	}
}
