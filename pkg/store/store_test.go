package store

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	handle, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = handle.Close()
	})
	return NewDB(handle, false), mock
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open("mysql://root@localhost/orbi")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "root", "connection secrets must not leak into errors")
}

func TestSQLTimeRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 30, 0, 123456789, time.UTC)
	assert.Equal(t, at, parseSQLTime(sqlTime(at)))

	// What a Postgres timestamp looks like after database/sql renders it
	// into a string destination.
	assert.Equal(t, at, parseSQLTime(at.Format(time.RFC3339Nano)))

	assert.True(t, parseSQLTime("").IsZero())
	assert.True(t, parseSQLTime("not a time").IsZero())
}

func TestSQLTimeOrderIsLexicographic(t *testing.T) {
	a := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	b := a.Add(500 * time.Millisecond)
	c := a.Add(time.Second)
	assert.Less(t, sqlTime(a), sqlTime(b))
	assert.Less(t, sqlTime(b), sqlTime(c))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(errors.New(`pq: duplicate key value violates unique constraint "users_email" (SQLSTATE 23505)`)))
	assert.True(t, isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)")))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
	assert.False(t, isUniqueViolation(nil))
}
