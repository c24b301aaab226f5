package server

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/dedupe"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/events"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/reason"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/rules"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/store"
)

func TestValidateEmailHappyPath(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/validate/email", map[string]string{"email": "Test@Example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[emailResponse](t, rec)
	assert.True(t, body.Valid)
	assert.Equal(t, "test@example.com", body.Normalized)
	assert.False(t, body.Disposable)
	assert.True(t, body.MXFound)
	assert.Empty(t, body.ReasonCodes)
	assert.NotEmpty(t, body.RequestID)
}

func TestValidateEmailDisposable(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/validate/email", map[string]string{"email": "user@disposable.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[emailResponse](t, rec)
	assert.False(t, body.Valid)
	assert.True(t, body.Disposable)
	assert.True(t, body.MXFound)
	assert.Equal(t, []string{reason.EmailDisposableDomain}, body.ReasonCodes)
}

func TestValidateEmailPayloadErrors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/validate/email", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_payload", decodeBody[errBody](t, rec).Err.Code)

	rec = env.do(t, http.MethodPost, "/v1/validate/email", map[string]any{"email": 12})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[errBody](t, rec)
	assert.Equal(t, "validation_error", body.Err.Code)
	assert.Contains(t, body.Err.Message, "email")
}

func TestValidatePhoneWithOTP(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/validate/phone", map[string]any{
		"phone": "+1 415 555 2671", "send_otp": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[phoneResponse](t, rec)
	assert.True(t, body.Valid)
	assert.Equal(t, "+14155552671", body.E164)
	assert.Equal(t, "US", body.Country)
	assert.Equal(t, "ver_1", body.VerificationID)
	assert.Contains(t, body.ReasonCodes, reason.PhoneOTPSent)
}

func TestVerifyPhoneCode(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/verify/phone", map[string]string{
		"verification_sid": "ver_1", "code": "123456",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[otpResponse](t, rec).Valid)

	env.otp.approved = false
	rec = env.do(t, http.MethodPost, "/v1/verify/phone", map[string]string{
		"verification_sid": "ver_1", "code": "000000",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[otpResponse](t, rec)
	assert.False(t, body.Valid)
	assert.Contains(t, body.ReasonCodes, reason.PhoneOTPInvalid)
}

func TestValidateAddressPOBox(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/validate/address", map[string]string{
		"line1": "P.O. Box 123", "city": "New York",
		"postal_code": "10001", "country": "US",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[addressResponse](t, rec)
	assert.False(t, body.Valid)
	assert.True(t, body.POBox)
	assert.True(t, body.PostalCityMatch)
	assert.Contains(t, body.ReasonCodes, reason.AddressPOBox)
}

func TestValidateAddressSchemaRejects(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/validate/address", map[string]string{
		"line1": "350 5th Ave", "city": "New York", "postal_code": "10118",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[errBody](t, rec).Err.Message, "country")

	rec = env.do(t, http.MethodPost, "/v1/validate/address", map[string]string{
		"line1": "350 5th Ave", "city": "New York",
		"postal_code": "10118", "country": "USA",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeBody[errBody](t, rec).Err.Code)
}

func TestValidateTaxID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/validate/tax-id", map[string]string{
		"type": "cpf", "value": "529.982.247-25",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[taxIDResponse](t, rec)
	assert.True(t, body.Valid)
	assert.Equal(t, "52998224725", body.Normalized)

	rec = env.do(t, http.MethodPost, "/v1/validate/tax-id", map[string]string{
		"type": "hovercraft", "value": "42",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody[taxIDResponse](t, rec)
	assert.False(t, body.Valid)
	assert.Contains(t, body.ReasonCodes, reason.TaxIDUnsupportedType)
}

func TestValidateName(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/validate/name", map[string]string{
		"first_name": "ada", "last_name": "LOVELACE",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[nameResponse](t, rec)
	assert.True(t, body.Valid)

	rec = env.do(t, http.MethodPost, "/v1/validate/name", map[string]string{
		"first_name": "12345", "last_name": "678",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody[nameResponse](t, rec)
	assert.False(t, body.Valid)
	assert.Contains(t, body.ReasonCodes, reason.NameNumeric)
}

func TestNormalizeAddressFixedPoint(t *testing.T) {
	env := newTestEnv(t)

	in := map[string]string{
		"line1": "  350   5th Ave ", "city": "new york",
		"postal_code": "10118", "country": "us",
	}
	rec := env.do(t, http.MethodPost, "/v1/normalize/address", in)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeBody[normalizeResponse](t, rec)
	assert.Equal(t, "US", first.Normalized.Country)
	assert.NotEmpty(t, first.AddressHash)

	again := map[string]string{
		"line1": first.Normalized.Line1, "city": first.Normalized.City,
		"postal_code": first.Normalized.PostalCode, "country": first.Normalized.Country,
	}
	rec = env.do(t, http.MethodPost, "/v1/normalize/address", again)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeBody[normalizeResponse](t, rec)
	assert.Equal(t, first.Normalized, second.Normalized)
	assert.Equal(t, first.AddressHash, second.AddressHash)
}

func TestValidateBatchPartialFailure(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/validate/batch", map[string]any{
		"items": []map[string]any{
			{"type": "email", "payload": map[string]string{"email": "a@example.com"}},
			{"type": "name", "payload": map[string]string{"first_name": "999", "last_name": "111"}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[batchResponse](t, rec)
	require.Len(t, body.Items, 2)
	assert.True(t, body.Items[0].Valid)
	assert.False(t, body.Items[1].Valid)
	assert.Contains(t, body.ReasonCodes, reason.BatchPartialFailure)
}

func TestDedupeCustomerExactMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	customers := store.NewCustomerStore(env.db)
	_, err := customers.Upsert(ctx, &store.Customer{
		ProjectID:       "proj_1",
		Email:           "Jane@Example.com",
		NormalizedEmail: "jane@example.com",
		FirstName:       "Jane",
		LastName:        "Doe",
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/v1/dedupe/customer", map[string]string{
		"email": "JANE@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[dedupeResponse](t, rec)
	require.Len(t, body.Matches, 1)
	assert.Equal(t, 1.0, body.Matches[0].Score)
	assert.Equal(t, "exact_email", body.Matches[0].MatchType)
	assert.Equal(t, dedupe.ActionMergeWith, body.SuggestedAction)
	assert.Contains(t, body.ReasonCodes, reason.DedupeExactMatch)
}

func TestDedupeMergeFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	customers := store.NewCustomerStore(env.db)
	canonical, err := customers.Upsert(ctx, &store.Customer{
		ProjectID: "proj_1", NormalizedEmail: "keep@example.com",
	})
	require.NoError(t, err)
	dup, err := customers.Upsert(ctx, &store.Customer{
		ProjectID: "proj_1", NormalizedEmail: "drop@example.com",
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/v1/dedupe/merge", map[string]any{
		"type": "customer", "canonical_id": canonical, "ids": []string{dup},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[mergeResponse](t, rec)
	assert.Equal(t, canonical, body.CanonicalID)
	assert.Equal(t, []string{dup}, body.MergedIDs)
	assert.Contains(t, body.ReasonCodes, reason.DedupeMerged)

	rec = env.do(t, http.MethodPost, "/v1/dedupe/merge", map[string]any{
		"type": "vehicle", "canonical_id": canonical, "ids": []string{dup},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_type", decodeBody[errBody](t, rec).Err.Code)

	rec = env.do(t, http.MethodPost, "/v1/dedupe/merge", map[string]any{
		"type": "customer", "canonical_id": canonical, "ids": []string{},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_ids", decodeBody[errBody](t, rec).Err.Code)

	rec = env.do(t, http.MethodPost, "/v1/dedupe/merge", map[string]any{
		"type": "customer", "canonical_id": "cust_missing", "ids": []string{dup},
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeBody[errBody](t, rec).Err.Code)
}

func TestOrderEvaluateDuplicatePath(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{
		"order_id": "ORD-777",
		"customer": map[string]any{"email": "buyer@example.com"},
		"shipping_address": map[string]any{
			"line1": "350 5th Ave", "city": "New York",
			"postal_code": "10118", "country": "US",
		},
		"total_amount": 100.0,
		"currency":     "USD",
	}

	rec := env.do(t, http.MethodPost, "/v1/orders/evaluate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeBody[evaluationResponse](t, rec)
	assert.False(t, first.Duplicate)
	assert.NotContains(t, first.ReasonCodes, reason.OrderDuplicateDetected)

	rec = env.do(t, http.MethodPost, "/v1/orders/evaluate", body)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeBody[evaluationResponse](t, rec)
	assert.True(t, second.Duplicate)
	assert.Contains(t, second.ReasonCodes, reason.OrderDuplicateDetected)
	assert.Contains(t, second.Tags, "duplicate_order")
	assert.GreaterOrEqual(t, second.RiskScore, 50)
}

func TestRuleEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ruleStore := store.NewRuleStore(env.db)
	require.NoError(t, ruleStore.Upsert(ctx, "proj_1", &rules.Rule{
		ID:         "hold-high-risk",
		Name:       "Hold high risk",
		Action:     rules.ActionHold,
		Priority:   10,
		Enabled:    true,
		Expression: "risk_score >= 50",
	}))

	rec := env.do(t, http.MethodGet, "/v1/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[ruleListResponse](t, rec)
	require.Len(t, list.Rules, 1)
	assert.Equal(t, "hold-high-risk", list.Rules[0].ID)

	rec = env.do(t, http.MethodGet, "/v1/rules/catalog", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	catalog := decodeBody[ruleCatalogResponse](t, rec)
	assert.NotEmpty(t, catalog.Catalog)

	rec = env.do(t, http.MethodGet, "/v1/rules/catalog/error-codes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	codes := decodeBody[errorCodesResponse](t, rec)
	assert.NotEmpty(t, codes.Categories)
	var found bool
	for _, e := range codes.ErrorCodes {
		if e.Code == reason.EmailInvalidFormat {
			found = true
			assert.Equal(t, "email", e.Category)
		}
	}
	assert.True(t, found, "registry must include %s", reason.EmailInvalidFormat)
}

func TestLogListPaginationAndDelete(t *testing.T) {
	env := newTestEnv(t)

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		rec := env.do(t, http.MethodPost, "/v1/validate/email", map[string]string{"email": email})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/v1/data/logs?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[logListResponse](t, rec)
	require.Len(t, page.Logs, 2)
	require.NotEmpty(t, page.NextCursor)
	for _, entry := range page.Logs {
		assert.Equal(t, events.TypeValidation, entry.Type)
		assert.Equal(t, "/v1/validate/email", entry.Endpoint)
		assert.Equal(t, "proj_1", entry.ProjectID)
	}

	rec = env.do(t, http.MethodGet, "/v1/data/logs?limit=2&cursor="+page.NextCursor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	next := decodeBody[logListResponse](t, rec)
	require.NotEmpty(t, next.Logs)
	assert.NotEqual(t, page.Logs[0].ID, next.Logs[0].ID)

	victim := next.Logs[0].ID
	rec = env.do(t, http.MethodDelete, "/v1/data/logs/"+victim, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[deleteResponse](t, rec).Deleted)

	rec = env.do(t, http.MethodDelete, "/v1/data/logs/"+victim, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/data/logs?cursor=!not-a-cursor!", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookCRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doSession(t, http.MethodPost, "/v1/webhooks", map[string]any{
		"url": "http://insecure.example.com/in", "events": []string{"order_evaluation"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_url", decodeBody[errBody](t, rec).Err.Code)

	rec = env.doSession(t, http.MethodPost, "/v1/webhooks", map[string]any{
		"url": "https://hooks.example.com/in", "events": []string{"carrier_pigeon"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeBody[errBody](t, rec).Err.Code)

	rec = env.doSession(t, http.MethodPost, "/v1/webhooks", map[string]any{
		"url": "https://hooks.example.com/in", "events": []string{"order_evaluation", "validation"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[webhookCreateResponse](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.True(t, strings.HasPrefix(created.Secret, "whsec_"), "generated secret, got %q", created.Secret)
	assert.Equal(t, store.WebhookActive, created.Status)

	rec = env.doSession(t, http.MethodGet, "/v1/webhooks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[webhookListResponse](t, rec)
	require.Len(t, list.Webhooks, 1)
	assert.Empty(t, list.Webhooks[0].Secret, "list must not expose secrets")

	rec = env.doSession(t, http.MethodDelete, "/v1/webhooks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.doSession(t, http.MethodDelete, "/v1/webhooks/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidationAppendsLogEntries(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/validate/email", map[string]string{"email": "not-an-email"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[emailResponse](t, rec).Valid)

	entries, err := store.NewEventStore(env.db).List(context.Background(), "proj_1", nil, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, events.TypeValidation, entries[0].Type)
	assert.Equal(t, "invalid", entries[0].Status)
	assert.Contains(t, entries[0].ReasonCodes, reason.EmailInvalidFormat)
	assert.NotEmpty(t, entries[0].Meta["request_id"])
}
