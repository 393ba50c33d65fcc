package patients

import (
	"context"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactKey(t *testing.T) {
	tests := []struct {
		name  string
		email string
		phone string
		want  string
	}{
		{name: "email wins", email: " An@Example.com ", phone: "0901234567", want: "email:an@example.com"},
		{name: "local phone", phone: "090 123 4567", want: "phone:84901234567"},
		{name: "international phone", phone: "+84 90-123-4567", want: "phone:84901234567"},
		{name: "nothing", phone: "n/a", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContactKey(tt.email, tt.phone))
		})
	}
}

func TestUpsertRequestValidate(t *testing.T) {
	assert.ErrorIs(t, (&UpsertRequest{Phone: "0901"}).Validate(), ErrInvalidName)
	assert.ErrorIs(t, (&UpsertRequest{FullName: "An"}).Validate(), ErrMissingContact)
	assert.NoError(t, (&UpsertRequest{FullName: "An", Email: "an@example.com"}).Validate())
}

func TestInMemoryUpsertMatchesByContact(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	first, err := repo.Upsert(ctx, UpsertRequest{FullName: "Nguyễn An", Phone: "0901234567"})
	require.NoError(t, err)

	second, err := repo.Upsert(ctx, UpsertRequest{FullName: "Nguyễn Văn An", Phone: "+84 901 234 567", Address: "Hà Nội"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Nguyễn Văn An", second.FullName)
	assert.Equal(t, "Hà Nội", second.Address)
	assert.Equal(t, 1, repo.Count())

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hà Nội", got.Address)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryUpsertRejectsInvalid(t *testing.T) {
	repo := NewInMemoryRepository()
	_, err := repo.Upsert(context.Background(), UpsertRequest{FullName: "An"})
	assert.ErrorIs(t, err, ErrMissingContact)
	assert.Zero(t, repo.Count())
}

var patientColumns = []string{"id", "full_name", "email", "phone", "date_of_birth", "gender", "address", "contact_key", "created_at", "updated_at"}

func TestPostgresUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	now := time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO patients").
		WithArgs(pgxmock.AnyArg(), "email:an@example.com", "Nguyễn An", "an@example.com", "", "", "", "").
		WillReturnRows(pgxmock.NewRows(patientColumns).
			AddRow("p-1", "Nguyễn An", "an@example.com", "0901234567", "", "", "", "email:an@example.com", now, now))

	p, err := repo.Upsert(context.Background(), UpsertRequest{FullName: " Nguyễn An ", Email: "AN@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ID)
	assert.Equal(t, "0901234567", p.Phone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertValidatesBeforeQuery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	_, err = repo.Upsert(context.Background(), UpsertRequest{Email: "an@example.com"})
	assert.ErrorIs(t, err, ErrInvalidName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	mock.ExpectQuery("SELECT .* FROM patients").WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
