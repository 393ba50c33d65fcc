package directory

import (
	"context"
	"errors"
	"testing"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var doctorRowColumns = []string{"id", "full_name", "title", "specialty_code", "specialty_name", "rating", "consultation_fee", "status"}

func TestPostgresSourceFindBySpecialty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	src := newPostgresSourceWithQuerier(mock)
	mock.ExpectQuery("SELECT .* FROM doctors").
		WithArgs("CARDIOLOGY", "Tim mạch", 5).
		WillReturnRows(pgxmock.NewRows(doctorRowColumns).
			AddRow("D1", "Nguyễn Văn Minh", "PGS.TS.BS", "CARDIOLOGY", "Tim mạch", 4.9, int64(300000), "available").
			AddRow("D2", "Trần Thị Lan", "", "CARDIOLOGY", "Tim mạch", 4.7, int64(0), "available"))

	doctors, err := src.FindBySpecialty(context.Background(), "CARDIOLOGY", "Tim mạch", 5)
	require.NoError(t, err)
	require.Len(t, doctors, 2)
	assert.Equal(t, "D1", doctors[0].ID)
	assert.Equal(t, int64(300000), doctors[0].ConsultationFee)
	assert.Equal(t, 4.7, doctors[1].Rating)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSourceQueryFailureIsUnavailable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	src := newPostgresSourceWithQuerier(mock)
	mock.ExpectQuery("SELECT .* FROM doctors").
		WithArgs("ENT", "Tai mũi họng", 5).
		WillReturnError(errors.New("dial tcp: connection refused"))

	_, err = src.FindBySpecialty(context.Background(), "ENT", "Tai mũi họng", 5)
	assert.ErrorIs(t, err, ErrUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSourceGetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	src := newPostgresSourceWithQuerier(mock)
	mock.ExpectQuery("SELECT .* FROM doctors WHERE id").
		WithArgs("D3").
		WillReturnRows(pgxmock.NewRows(doctorRowColumns).
			AddRow("D3", "Lê Hoàng Nam", "BS.CKII", "NEUROLOGY", "Thần kinh", 4.8, int64(250000), "available"))
	mock.ExpectQuery("SELECT .* FROM doctors WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	d, err := src.GetByID(context.Background(), "D3")
	require.NoError(t, err)
	assert.Equal(t, "NEUROLOGY", d.SpecialtyCode)

	_, err = src.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
