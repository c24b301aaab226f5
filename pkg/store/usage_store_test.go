package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageIncrementKeysByUTCDay(t *testing.T) {
	db, mock := newMockStore(t)
	s := NewUsageStore(db)

	// 23:30 in UTC-2 is already the next UTC day.
	at := time.Date(2025, 6, 1, 23, 30, 0, 0, time.FixedZone("X", -2*3600))
	mock.ExpectExec(regexp.QuoteMeta(incrementUsageQuery)).
		WithArgs("proj_1", "/v1/validate/email", "2025-06-02").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Increment(context.Background(), "proj_1", "/v1/validate/email", at))
}

func TestUsageSince(t *testing.T) {
	db, mock := newMockStore(t)
	s := NewUsageStore(db)

	rows := sqlmock.NewRows([]string{"endpoint", "day", "count"}).
		AddRow("/v1/orders/evaluate", "2025-06-01", int64(12)).
		AddRow("/v1/validate/email", "2025-06-01", int64(40))
	mock.ExpectQuery(regexp.QuoteMeta(usageSinceQuery)).
		WithArgs("proj_1", "2025-06-01").
		WillReturnRows(rows)

	got, err := s.Since(context.Background(), "proj_1", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(40), got[1].Count)
}
