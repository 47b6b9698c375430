package dal

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-db/folio"
)

func newMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return OpenDB(db), mock
}

func TestQueryTranslatesConstraintError(t *testing.T) {
	d, mock := newMock(t)
	mock.ExpectQuery("SELECT 1").WillReturnError(&pq.Error{
		Code:       "23505",
		Constraint: "users_email_key",
	})

	_, err := d.Query(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.True(t, folio.IsConstraintError(err))

	var ce *folio.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "users_email_key", ce.Constraint())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecTranslatesConnectionError(t *testing.T) {
	d, mock := newMock(t)
	mock.ExpectExec("UPDATE users SET is_trusted = true").WillReturnError(&pq.Error{
		Code: "08006", // connection_failure
	})

	_, err := d.Exec(context.Background(), "UPDATE users SET is_trusted = true")
	require.Error(t, err)
	assert.True(t, folio.IsConnectionError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslate(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name       string
		in         error
		connection bool
		constraint bool
		unchanged  bool
	}{
		{name: "nil", in: nil},
		{name: "no rows passes through", in: sql.ErrNoRows, unchanged: true},
		{name: "unknown passes through", in: boom, unchanged: true},
		{name: "unique violation", in: &pq.Error{Code: "23505"}, constraint: true},
		{name: "foreign key violation", in: &pq.Error{Code: "23503"}, constraint: true},
		{name: "insufficient resources", in: &pq.Error{Code: "53300"}, connection: true},
		{name: "shutdown", in: &pq.Error{Code: "57P01"}, connection: true},
		{name: "bad conn", in: driver.ErrBadConn, connection: true},
		{name: "deadline", in: context.DeadlineExceeded, connection: true},
		{name: "canceled", in: context.Canceled, connection: true},
		{name: "net error", in: &net.OpError{Op: "dial", Err: errors.New("refused")}, connection: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Translate("query", tt.in)
			switch {
			case tt.in == nil:
				assert.NoError(t, out)
			case tt.constraint:
				assert.True(t, folio.IsConstraintError(out))
			case tt.connection:
				assert.True(t, folio.IsConnectionError(out))
				assert.ErrorIs(t, out, tt.in)
			case tt.unchanged:
				assert.Equal(t, tt.in, out)
			}
		})
	}
}

func TestTransactionCommits(t *testing.T) {
	d, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET is_trusted = true WHERE id = $1").
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := d.Transaction(context.Background(), func(tx *Tx) error {
		_, err := tx.Exec(context.Background(), "UPDATE users SET is_trusted = true WHERE id = $1", "u1")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRollsBackOnError(t *testing.T) {
	d, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := d.Transaction(context.Background(), func(tx *Tx) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRollbackFailureIsReported(t *testing.T) {
	d, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("broken pipe"))

	boom := errors.New("boom")
	err := d.Transaction(context.Background(), func(tx *Tx) error {
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var re *folio.RollbackError
	assert.ErrorAs(t, err, &re)
}
