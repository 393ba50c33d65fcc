package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemorySource is an in-process doctor store for development and tests.
type MemorySource struct {
	mu      sync.RWMutex
	doctors []Doctor
}

// NewMemorySource seeds a store with doctors.
func NewMemorySource(doctors ...Doctor) *MemorySource {
	return &MemorySource{doctors: append([]Doctor(nil), doctors...)}
}

// Add inserts or replaces a doctor by id.
func (s *MemorySource) Add(d Doctor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.doctors {
		if s.doctors[i].ID == d.ID {
			s.doctors[i] = d
			return
		}
	}
	s.doctors = append(s.doctors, d)
}

func (s *MemorySource) FindBySpecialty(_ context.Context, code, name string, limit int) ([]Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Doctor
	for _, d := range s.doctors {
		if d.Status != StatusAvailable {
			continue
		}
		if strings.EqualFold(d.SpecialtyCode, code) || (name != "" && strings.EqualFold(d.SpecialtyName, name)) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].FullName < out[j].FullName
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemorySource) GetByID(_ context.Context, id string) (Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.doctors {
		if d.ID == id {
			return d, nil
		}
	}
	return Doctor{}, ErrNotFound
}

// DemoDoctors is the roster used when no database is configured.
func DemoDoctors() []Doctor {
	return []Doctor{
		{ID: "D1", FullName: "Nguyễn Văn Minh", Title: "PGS.TS.BS", SpecialtyCode: "CARDIOLOGY", SpecialtyName: "Tim mạch", Rating: 4.9, ConsultationFee: 300000, Status: StatusAvailable},
		{ID: "D2", FullName: "Trần Thị Lan", Title: "ThS.BS", SpecialtyCode: "CARDIOLOGY", SpecialtyName: "Tim mạch", Rating: 4.7, Status: StatusAvailable},
		{ID: "D3", FullName: "Lê Hoàng Nam", Title: "BS.CKII", SpecialtyCode: "NEUROLOGY", SpecialtyName: "Thần kinh", Rating: 4.8, ConsultationFee: 250000, Status: StatusAvailable},
		{ID: "D4", FullName: "Phạm Thu Hà", Title: "BS.CKI", SpecialtyCode: "GASTROENTEROLOGY", SpecialtyName: "Tiêu hóa", Rating: 4.6, Status: StatusAvailable},
		{ID: "D5", FullName: "Võ Quốc Bảo", Title: "BS.CKI", SpecialtyCode: "RESPIRATORY", SpecialtyName: "Hô hấp", Rating: 4.5, Status: StatusAvailable},
		{ID: "D6", FullName: "Đặng Minh Châu", Title: "ThS.BS", SpecialtyCode: "GENERAL", SpecialtyName: "Nội tổng quát", Rating: 4.6, Status: StatusAvailable},
		{ID: "D7", FullName: "Hoàng Gia Huy", Title: "BS", SpecialtyCode: "DERMATOLOGY", SpecialtyName: "Da liễu", Rating: 4.4, Status: "on_leave"},
	}
}
