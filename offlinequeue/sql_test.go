package offlinequeue

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQL(t *testing.T, opts ...SQLOption) (*SQL, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	return NewSQL(sqlx.NewDb(mockDB, "sqlmock"), opts...), mock
}

func TestSQL_EnqueueInsertsRow(t *testing.T) {
	q, mock := newTestSQL(t)

	mock.ExpectExec("INSERT INTO pending_requests").
		WithArgs(
			sqlmock.AnyArg(), // generated id
			"POST",
			"https://api.example.com/moods",
			[]byte(`{"mood":"calm"}`),
			sqlmock.AnyArg(), // enqueue timestamp
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := q.Enqueue(context.Background(), "POST", "https://api.example.com/moods", []byte(`{"mood":"calm"}`))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_CustomTable(t *testing.T) {
	q, mock := newTestSQL(t, WithSQLTable("sync_outbox"))

	mock.ExpectExec("INSERT INTO sync_outbox").
		WithArgs(sqlmock.AnyArg(), "DELETE", "https://x/3", []byte(nil), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := q.Enqueue(context.Background(), "DELETE", "https://x/3", nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_InsertErrorSurfaced(t *testing.T) {
	q, mock := newTestSQL(t)

	dbErr := errors.New("connection reset by peer")
	mock.ExpectExec("INSERT INTO pending_requests").
		WillReturnError(dbErr)

	err := q.Enqueue(context.Background(), "PUT", "https://x", nil)
	require.ErrorIs(t, err, dbErr)
	assert.ErrorContains(t, err, "failed to insert queue entry")
	require.NoError(t, mock.ExpectationsWereMet())
}
