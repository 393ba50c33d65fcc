package reservations

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/hospital-booking/internal/keylock"
)

const terminalRetention = 24 * time.Hour

// MemoryStore keeps reservations in process memory. Each slot key is guarded
// by its stripe of a keylock.Striped, so different keys do not contend.
type MemoryStore struct {
	locks  *keylock.Striped
	bySlot sync.Map // slot key -> reservation id of the current holder
	byID   sync.Map // reservation id -> Reservation
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: keylock.New(0)}
}

func (s *MemoryStore) Acquire(_ context.Context, candidate Reservation, now time.Time) (Reservation, error) {
	unlock := s.locks.Lock(candidate.SlotKey)
	defer unlock()

	if holder, ok := s.holder(candidate.SlotKey); ok {
		if holder.Active(now) {
			return holder, nil
		}
		s.expireLocked(holder)
	}
	s.byID.Store(candidate.ID, candidate)
	s.bySlot.Store(candidate.SlotKey, candidate.ID)
	return candidate, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Reservation, error) {
	v, ok := s.byID.Load(id)
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return v.(Reservation), nil
}

func (s *MemoryStore) Confirm(ctx context.Context, id string, now time.Time) (Reservation, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	unlock := s.locks.Lock(r.SlotKey)
	defer unlock()

	r, err = s.Get(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	switch r.Status {
	case StatusConfirmed:
		return r, nil
	case StatusReleased:
		return r, ErrReleased
	case StatusExpired:
		return r, ErrExpired
	}
	if !now.Before(r.ExpiresAt) {
		return s.expireLocked(r), ErrExpired
	}
	confirmedAt := now
	r.Status = StatusConfirmed
	r.ConfirmedAt = &confirmedAt
	s.byID.Store(r.ID, r)
	return r, nil
}

func (s *MemoryStore) Release(ctx context.Context, id string, now time.Time) (Reservation, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	unlock := s.locks.Lock(r.SlotKey)
	defer unlock()

	r, err = s.Get(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	switch r.Status {
	case StatusReleased, StatusExpired:
		return r, nil
	case StatusConfirmed:
		return r, ErrConfirmed
	}
	if !now.Before(r.ExpiresAt) {
		return s.expireLocked(r), nil
	}
	releasedAt := now
	r.Status = StatusReleased
	r.ReleasedAt = &releasedAt
	s.byID.Store(r.ID, r)
	s.bySlot.CompareAndDelete(r.SlotKey, r.ID)
	return r, nil
}

func (s *MemoryStore) Reopen(ctx context.Context, id string, now time.Time) (Reservation, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	unlock := s.locks.Lock(r.SlotKey)
	defer unlock()

	r, err = s.Get(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if r.Status != StatusConfirmed {
		return r, nil
	}
	r.Status = StatusHeld
	r.ConfirmedAt = nil
	if !now.Before(r.ExpiresAt) {
		return s.expireLocked(r), nil
	}
	s.byID.Store(r.ID, r)
	return r, nil
}

func (s *MemoryStore) Holders(_ context.Context, slotKeys []string, now time.Time) (map[string]Reservation, error) {
	out := make(map[string]Reservation)
	for _, key := range slotKeys {
		if holder, ok := s.holder(key); ok && holder.Active(now) {
			out[key] = holder
		}
	}
	return out, nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	expired := 0
	s.bySlot.Range(func(k, _ any) bool {
		key := k.(string)
		unlock := s.locks.Lock(key)
		if holder, ok := s.holder(key); ok && !holder.Active(now) {
			s.expireLocked(holder)
			expired++
		}
		unlock()
		return true
	})
	cutoff := now.Add(-terminalRetention)
	s.byID.Range(func(k, v any) bool {
		r := v.(Reservation)
		if (r.Status == StatusReleased || r.Status == StatusExpired) && r.ExpiresAt.Before(cutoff) {
			s.byID.Delete(k)
		}
		return true
	})
	return expired, nil
}

func (s *MemoryStore) holder(key string) (Reservation, bool) {
	id, ok := s.bySlot.Load(key)
	if !ok {
		return Reservation{}, false
	}
	v, ok := s.byID.Load(id)
	if !ok {
		return Reservation{}, false
	}
	return v.(Reservation), true
}

// expireLocked must be called with the key's stripe held.
func (s *MemoryStore) expireLocked(r Reservation) Reservation {
	r.Status = StatusExpired
	s.byID.Store(r.ID, r)
	s.bySlot.CompareAndDelete(r.SlotKey, r.ID)
	return r
}
