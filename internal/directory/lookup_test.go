package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/hospital-booking/pkg/logging"
)

type failingSource struct{ err error }

func (f failingSource) FindBySpecialty(context.Context, string, string, int) ([]Doctor, error) {
	return nil, f.err
}

func (f failingSource) GetByID(context.Context, string) (Doctor, error) {
	return Doctor{}, f.err
}

func TestFindDoctorsFiltersAndRanks(t *testing.T) {
	lookup := NewLookup(NewMemorySource(DemoDoctors()...), 5, logging.Discard())

	res, err := lookup.FindDoctors(context.Background(), "cardiology")
	require.NoError(t, err)
	assert.False(t, res.Synthetic)
	require.Len(t, res.Doctors, 2)
	assert.Equal(t, "D1", res.Doctors[0].ID)
	assert.Equal(t, "D2", res.Doctors[1].ID)
}

func TestFindDoctorsMatchesSpecialtyName(t *testing.T) {
	src := NewMemorySource(Doctor{ID: "X1", FullName: "A", SpecialtyCode: "tim-mach", SpecialtyName: "Tim mạch", Status: StatusAvailable})
	lookup := NewLookup(src, 5, logging.Discard())

	res, err := lookup.FindDoctors(context.Background(), "CARDIOLOGY")
	require.NoError(t, err)
	require.Len(t, res.Doctors, 1)
	assert.Equal(t, "X1", res.Doctors[0].ID)
}

func TestFindDoctorsRespectsLimit(t *testing.T) {
	src := NewMemorySource()
	for _, id := range []string{"a", "b", "c", "d"} {
		src.Add(Doctor{ID: id, FullName: id, SpecialtyCode: "ENT", Status: StatusAvailable})
	}
	lookup := NewLookup(src, 2, logging.Discard())

	res, err := lookup.FindDoctors(context.Background(), "ENT")
	require.NoError(t, err)
	assert.Len(t, res.Doctors, 2)
}

func TestFindDoctorsEmptyFallsBackToPlaceholders(t *testing.T) {
	lookup := NewLookup(NewMemorySource(DemoDoctors()...), 5, logging.Discard())

	res, err := lookup.FindDoctors(context.Background(), "DERMATOLOGY")
	require.NoError(t, err)
	assert.True(t, res.Synthetic)
	require.Len(t, res.Doctors, 3)
	for _, d := range res.Doctors {
		assert.True(t, d.Synthetic)
		assert.True(t, IsSynthetic(d.ID))
		assert.Equal(t, "DERMATOLOGY", d.SpecialtyCode)
	}
	assert.Equal(t, "synthetic-dermatology-1", res.Doctors[0].ID)

	again, err := lookup.FindDoctors(context.Background(), "DERMATOLOGY")
	require.NoError(t, err)
	assert.Equal(t, res, again)
}

func TestFindDoctorsStoreFailureIsUnavailable(t *testing.T) {
	lookup := NewLookup(failingSource{err: errors.New("connection refused")}, 5, logging.Discard())

	_, err := lookup.FindDoctors(context.Background(), "CARDIOLOGY")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFindDoctorsRequiresCode(t *testing.T) {
	lookup := NewLookup(NewMemorySource(), 5, logging.Discard())
	_, err := lookup.FindDoctors(context.Background(), "  ")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestDoctorResolvesRealAndSynthetic(t *testing.T) {
	lookup := NewLookup(NewMemorySource(DemoDoctors()...), 5, logging.Discard())
	ctx := context.Background()

	d, err := lookup.Doctor(ctx, "D3")
	require.NoError(t, err)
	assert.Equal(t, int64(250000), d.ConsultationFee)

	p, err := lookup.Doctor(ctx, "synthetic-cardiology-2")
	require.NoError(t, err)
	assert.True(t, p.Synthetic)
	assert.Equal(t, "CARDIOLOGY", p.SpecialtyCode)

	_, err = lookup.Doctor(ctx, "synthetic-cardiology-9")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = lookup.Doctor(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlaceholdersUnknownCodeUsesGeneral(t *testing.T) {
	docs := Placeholders("???")
	require.Len(t, docs, 3)
	assert.Equal(t, "GENERAL", docs[0].SpecialtyCode)
	assert.Equal(t, "synthetic-general-1", docs[0].ID)
}
