package service

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// expectBalance queues the two non-locking balance reads; sub < 0 means no subscription row.
func expectBalance(mock sqlmock.Sqlmock, userID string, free, sub int) {
	mock.ExpectQuery(`SELECT free_credit FROM users WHERE id = \?`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"free_credit"}).AddRow(free))
	q := mock.ExpectQuery(`SELECT credits FROM subscriptions WHERE user_id = \?`).WithArgs(userID)
	if sub < 0 {
		q.WillReturnError(sql.ErrNoRows)
		return
	}
	q.WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(sub))
}

// expectLockedBalance queues the locking reads that open a deduction transaction.
func expectLockedBalance(mock sqlmock.Sqlmock, userID string, free, sub int) {
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT free_credit FROM users WHERE id = \? FOR UPDATE`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"free_credit"}).AddRow(free))
	q := mock.ExpectQuery(`SELECT credits FROM subscriptions WHERE user_id = \? FOR UPDATE`).WithArgs(userID)
	if sub < 0 {
		q.WillReturnError(sql.ErrNoRows)
		return
	}
	q.WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(sub))
}
