package profilestore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordscout/prospector/internal/model"
)

func TestPostgres_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO company_profiles`).
		WithArgs("5560001234", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	st := NewPostgresWithPool(mock)
	require.NoError(t, st.Upsert(context.Background(), testProfile("5560001234")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	data, err := json.Marshal(testProfile("5560001234"))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT profile FROM company_profiles WHERE org_id = \$1`).
		WithArgs("5560001234").
		WillReturnRows(pgxmock.NewRows([]string{"profile"}).AddRow(data))

	st := NewPostgresWithPool(mock)
	got, err := st.Get(context.Background(), "5560001234")
	require.NoError(t, err)
	assert.Equal(t, 7, got.FitScore)
	assert.Equal(t, "https://example.se", got.Address)
}

func TestPostgres_GetMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT profile FROM company_profiles`).
		WithArgs("5569999999").
		WillReturnRows(pgxmock.NewRows([]string{"profile"}))

	st := NewPostgresWithPool(mock)
	_, err = st.Get(context.Background(), "5569999999")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
