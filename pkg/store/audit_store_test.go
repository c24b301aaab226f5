package store

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditAppendStartsAtGenesis(t *testing.T) {
	db, mock := newMockStore(t)
	s := NewAuditStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(auditChainHeadQuery)).
		WithArgs("proj_1").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "entry_hash"}))
	mock.ExpectExec(regexp.QuoteMeta(insertAuditQuery)).
		WithArgs(sqlmock.AnyArg(), "proj_1", int64(1), "usr_1", "apikey.create", "key_1",
			sqlmock.AnyArg(), sqlmock.AnyArg(), auditGenesis, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry, err := s.Append(context.Background(), "proj_1", "usr_1", "apikey.create", "key_1", map[string]string{"prefix": "ok_abc"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.Seq)
	assert.Equal(t, auditGenesis, entry.PrevHash)
	assert.Contains(t, entry.EntryHash, "sha256:")
}

func TestAuditAppendChainsOffHead(t *testing.T) {
	db, mock := newMockStore(t)
	s := NewAuditStore(db)

	head := sqlmock.NewRows([]string{"seq", "entry_hash"}).AddRow(int64(4), "sha256:feed")
	mock.ExpectQuery(regexp.QuoteMeta(auditChainHeadQuery)).
		WithArgs("proj_1").
		WillReturnRows(head)
	mock.ExpectExec(regexp.QuoteMeta(insertAuditQuery)).
		WithArgs(sqlmock.AnyArg(), "proj_1", int64(5), "usr_1", "webhook.delete", "wh_1",
			sqlmock.AnyArg(), sqlmock.AnyArg(), "sha256:feed", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry, err := s.Append(context.Background(), "proj_1", "usr_1", "webhook.delete", "wh_1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), entry.Seq)
	assert.Equal(t, "sha256:feed", entry.PrevHash)
}

// chainRows fabricates a valid two-entry chain using the same hashing
// the store applies on write.
func chainRows(t *testing.T, tamper bool) *sqlmock.Rows {
	t.Helper()
	rows := sqlmock.NewRows([]string{"id", "project_id", "seq", "actor", "action", "subject",
		"payload", "payload_hash", "prev_hash", "entry_hash", "created_at"})

	prev := auditGenesis
	for i := int64(1); i <= 2; i++ {
		payload, _ := json.Marshal(map[string]int64{"n": i})
		e := &AuditEntry{
			ID:          "aud_" + string(rune('0'+i)),
			ProjectID:   "proj_1",
			Seq:         i,
			Actor:       "usr_1",
			Action:      "rule.update",
			Subject:     "rule_x",
			Payload:     payload,
			PayloadHash: contentHash(payload),
			PrevHash:    prev,
			CreatedAt:   time.Date(2025, 6, 1, 0, 0, int(i), 0, time.UTC),
		}
		var err error
		e.EntryHash, err = auditEntryHash(e)
		require.NoError(t, err)

		body := string(payload)
		if tamper && i == 2 {
			body = `{"n":99}`
		}
		rows.AddRow(e.ID, e.ProjectID, e.Seq, e.Actor, e.Action, e.Subject,
			body, e.PayloadHash, e.PrevHash, e.EntryHash, sqlTime(e.CreatedAt))
		prev = e.EntryHash
	}
	return rows
}

func TestVerifyChainAcceptsIntactChain(t *testing.T) {
	db, mock := newMockStore(t)
	s := NewAuditStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(auditEntriesQuery)).
		WithArgs("proj_1").
		WillReturnRows(chainRows(t, false))

	require.NoError(t, s.VerifyChain(context.Background(), "proj_1"))
}

func TestVerifyChainDetectsTamperedPayload(t *testing.T) {
	db, mock := newMockStore(t)
	s := NewAuditStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(auditEntriesQuery)).
		WithArgs("proj_1").
		WillReturnRows(chainRows(t, true))

	err := s.VerifyChain(context.Background(), "proj_1")
	assert.ErrorIs(t, err, ErrAuditChainBroken)
}
