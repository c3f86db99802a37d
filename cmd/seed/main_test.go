package main

import (
	"context"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-scheduling/internal/db"
)

func newTestSeeder(t *testing.T) (*seeder, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return &seeder{
		tx:     db.NewTransactor(mock),
		pool:   mock,
		faker:  gofakeit.New(42),
		logger: zerolog.Nop(),
	}, mock
}

func TestSeedPatientsCommitsOneBatch(t *testing.T) {
	s, mock := newTestSeeder(t)

	mock.ExpectBegin()
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO patients").
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, s.seedPatients(context.Background(), 3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedDoctorsSplitsBatches(t *testing.T) {
	s, mock := newTestSeeder(t)

	for _, rows := range []int{batchSize, 1} {
		mock.ExpectBegin()
		for i := 0; i < rows; i++ {
			mock.ExpectExec("INSERT INTO doctors").
				WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}
		mock.ExpectCommit()
	}

	require.NoError(t, s.seedDoctors(context.Background(), batchSize+1, []string{"Cardiology", "Neurology"}))
	require.NoError(t, mock.ExpectationsWereMet())
}
