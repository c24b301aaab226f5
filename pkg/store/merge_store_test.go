package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/dedupe"
)

func TestMergeCustomerRecordsTransaction(t *testing.T) {
	db, mock := newMockStore(t)
	s := NewMergeStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(customerExistsQuery)).
		WithArgs("proj_1", "cus_canon").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(customerExistsQuery)).
		WithArgs("proj_1", "cus_dup").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(repointOrderCustomerQuery)).
		WithArgs("cus_canon", "proj_1", "cus_dup").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(deleteCustomerQuery)).
		WithArgs("proj_1", "cus_dup").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertLogQuery)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(auditChainHeadQuery)).
		WithArgs("proj_1").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "entry_hash"}))
	mock.ExpectExec(regexp.QuoteMeta(insertAuditQuery)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.MergeCustomerRecords(context.Background(), "proj_1", "cus_canon", []string{"cus_dup"})
	require.NoError(t, err)
}

func TestMergeCustomerRecordsMissingCanonical(t *testing.T) {
	db, mock := newMockStore(t)
	s := NewMergeStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(customerExistsQuery)).
		WithArgs("proj_1", "ghost").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectRollback()

	err := s.MergeCustomerRecords(context.Background(), "proj_1", "ghost", []string{"cus_dup"})
	assert.ErrorIs(t, err, dedupe.ErrCanonicalNotFound)
}

func TestMergeAddressRecordsMissingDuplicate(t *testing.T) {
	db, mock := newMockStore(t)
	s := NewMergeStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(addressExistsQuery)).
		WithArgs("proj_1", "adr_canon").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(addressExistsQuery)).
		WithArgs("proj_1", "adr_ghost").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectRollback()

	err := s.MergeAddressRecords(context.Background(), "proj_1", "adr_canon", []string{"adr_ghost"})
	assert.ErrorIs(t, err, dedupe.ErrDuplicateNotFound)
}
