package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/hospital-booking/internal/triage"
	"github.com/wolfman30/hospital-booking/pkg/logging"
)

// DefaultLimit bounds how many doctors a lookup returns.
const DefaultLimit = 5

const (
	syntheticPrefix = "synthetic-"
	syntheticCount  = 3
)

var directoryTracer = otel.Tracer("hospital.internal.directory")

var placeholderNames = [syntheticCount]string{
	"Bác sĩ trực 1",
	"Bác sĩ trực 2",
	"Bác sĩ trực 3",
}

// Result is one lookup answer. Synthetic is set when Doctors are placeholders
// rather than real inventory.
type Result struct {
	Doctors   []Doctor `json:"doctors"`
	Synthetic bool     `json:"synthetic"`
}

// Lookup applies the filtering and fallback rules over a Source.
type Lookup struct {
	source Source
	limit  int
	logger *logging.Logger
}

// NewLookup creates a Lookup returning at most limit doctors.
func NewLookup(source Source, limit int, logger *logging.Logger) *Lookup {
	if source == nil {
		panic("directory: source required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Lookup{source: source, limit: limit, logger: logger}
}

// FindDoctors returns available doctors for specialtyCode. An empty store
// answer yields the synthetic placeholder set; a store failure returns
// ErrUnavailable so callers can tell it apart from "no doctors".
func (l *Lookup) FindDoctors(ctx context.Context, specialtyCode string) (Result, error) {
	ctx, span := directoryTracer.Start(ctx, "directory.find_doctors")
	defer span.End()

	code := strings.ToUpper(strings.TrimSpace(specialtyCode))
	span.SetAttributes(attribute.String("hospital.specialty_code", code))
	if code == "" {
		return Result{}, fmt.Errorf("directory: specialty code required")
	}

	name := ""
	if specialty, ok := triage.Lookup(code); ok {
		name = specialty.Name
	}
	doctors, err := l.source.FindBySpecialty(ctx, code, name, l.limit)
	if err != nil {
		span.RecordError(err)
		l.logger.Warn("doctor lookup failed", "specialty_code", code, "error", err)
		if !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return Result{}, err
	}

	available := make([]Doctor, 0, len(doctors))
	for _, d := range doctors {
		if d.Status == StatusAvailable {
			available = append(available, d)
		}
	}
	if len(available) > l.limit {
		available = available[:l.limit]
	}
	if len(available) == 0 {
		l.logger.Info("no doctors for specialty, using placeholders", "specialty_code", code)
		return Result{Doctors: Placeholders(code), Synthetic: true}, nil
	}
	return Result{Doctors: available}, nil
}

// Doctor resolves one doctor id. Synthetic ids resolve to their placeholder.
func (l *Lookup) Doctor(ctx context.Context, id string) (Doctor, error) {
	id = strings.TrimSpace(id)
	if IsSynthetic(id) {
		if d, ok := placeholder(id); ok {
			return d, nil
		}
		return Doctor{}, ErrNotFound
	}
	return l.source.GetByID(ctx, id)
}

// IsSynthetic reports whether id names a placeholder doctor.
func IsSynthetic(id string) bool {
	return strings.HasPrefix(id, syntheticPrefix)
}

// Placeholders returns the deterministic synthetic doctors for a specialty.
func Placeholders(specialtyCode string) []Doctor {
	code := strings.ToUpper(strings.TrimSpace(specialtyCode))
	specialty, ok := triage.Lookup(code)
	if !ok {
		specialty = triage.DefaultSpecialty
	}
	out := make([]Doctor, syntheticCount)
	for i := range out {
		out[i] = Doctor{
			ID:            syntheticPrefix + strings.ToLower(specialty.Code) + "-" + strconv.Itoa(i+1),
			FullName:      placeholderNames[i],
			SpecialtyCode: specialty.Code,
			SpecialtyName: specialty.Name,
			Status:        StatusAvailable,
			Synthetic:     true,
		}
	}
	return out
}

func placeholder(id string) (Doctor, bool) {
	rest := strings.TrimPrefix(id, syntheticPrefix)
	i := strings.LastIndex(rest, "-")
	if i <= 0 {
		return Doctor{}, false
	}
	n, err := strconv.Atoi(rest[i+1:])
	if err != nil || n < 1 || n > syntheticCount {
		return Doctor{}, false
	}
	for _, d := range Placeholders(rest[:i]) {
		if d.ID == id {
			return d, true
		}
	}
	return Doctor{}, false
}
