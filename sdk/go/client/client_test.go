package client_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/auth"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/cache"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/disposable"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/events"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/server"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/store"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/validate"
	"github.com/guillemso1er/orbitcheck-sub001/sdk/go/client"
)

type stubResolver struct{}

func (stubResolver) LookupMX(_ context.Context, domain string) ([]string, error) {
	if domain == "example.com" {
		return []string{"mx.example.com."}, nil
	}
	return nil, errors.New("nxdomain")
}

func (stubResolver) LookupA(_ context.Context, _ string) ([]string, error) {
	return nil, errors.New("nxdomain")
}

func (stubResolver) LookupAAAA(_ context.Context, _ string) ([]string, error) {
	return nil, errors.New("nxdomain")
}

// sdkEnv runs a real server over the in-memory store, wired with just
// the collaborators the client calls exercise, and returns one client
// holding the project API key and one holding a personal access token.
type sdkEnv struct {
	api *client.Client
	pat *client.Client
}

func newSDKEnv(t *testing.T) *sdkEnv {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open("sqlite://memory")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Init(ctx))

	logger := slog.New(slog.DiscardHandler)

	require.NoError(t, store.NewProjectStore(db).Create(ctx, &store.Project{ID: "proj_1", Name: "sdkco"}))

	creds := store.NewCredentialStore(db)
	key, prefix, hash, err := auth.GenerateAPIKey()
	require.NoError(t, err)
	require.NoError(t, creds.CreateAPIKey(ctx, &auth.APIKeyRecord{
		ID: "key_1", ProjectID: "proj_1", Prefix: prefix, Hash: hash,
	}))

	pepper := auth.DerivePepper(bytes.Repeat([]byte{3}, 32), "")
	pat, tokenID, secretHash, err := auth.GeneratePAT(pepper)
	require.NoError(t, err)
	require.NoError(t, creds.CreatePAT(ctx, &auth.PATRecord{
		ID: tokenID, UserID: "user_1", ProjectID: "proj_1", SecretHash: secretHash,
	}))

	eventStore := store.NewEventStore(db)
	email := validate.NewEmailValidator(cache.NewMemoryCache(), stubResolver{},
		disposable.NewChecker(cache.NewMemorySet()), logger)

	srv := server.New(server.Deps{
		Email:    email,
		Logs:     eventStore,
		Webhooks: store.NewWebhookStore(db),
		Health:   db,
		Events:   events.NewLogger(eventStore, nil, logger),
		Auth: &auth.Options{
			Sessions: auth.NewSessionManager("sdk-test-secret"),
			Creds:    creds,
			Pepper:   pepper,
		},
		Logger: logger,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &sdkEnv{
		api: client.New(ts.URL, client.WithToken(key)),
		pat: client.New(ts.URL, client.WithToken(pat)),
	}
}

func TestClientValidateEmail(t *testing.T) {
	env := newSDKEnv(t)

	res, err := env.api.ValidateEmail("SDK.User@Example.com")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "sdk.user@example.com", res.Normalized)
	assert.True(t, res.MXFound)
	assert.Empty(t, res.ReasonCodes)
	assert.NotEmpty(t, res.RequestID)
}

func TestClientHealth(t *testing.T) {
	env := newSDKEnv(t)

	res, err := env.api.Health()
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, "ok", res.Database)
}

func TestClientErrorMapping(t *testing.T) {
	env := newSDKEnv(t)

	_, err := env.api.DeleteLog("log_missing")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
	assert.Equal(t, "not_found", apiErr.Code)
	assert.NotEmpty(t, apiErr.RequestID)

	anon := client.New(env.api.BaseURL)
	_, err = anon.ValidateEmail("a@example.com")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, "unauthorized", apiErr.Code)
}

func TestClientWebhookLifecycle(t *testing.T) {
	env := newSDKEnv(t)

	// Webhook management wants a personal access token; the project API
	// key must be turned away.
	_, err := env.api.ListWebhooks()
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)

	created, err := env.pat.CreateWebhook(client.WebhookRequest{
		URL:    "https://hooks.example.com/orbicheck",
		Events: []string{"order_evaluation", "merge"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.Secret, "whsec_"))
	assert.Equal(t, "active", created.Status)

	list, err := env.pat.ListWebhooks()
	require.NoError(t, err)
	require.Len(t, list.Webhooks, 1)
	assert.Equal(t, created.ID, list.Webhooks[0].ID)
	assert.Empty(t, list.Webhooks[0].Secret)

	deleted, err := env.pat.DeleteWebhook(created.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
}

func TestClientLogPagination(t *testing.T) {
	env := newSDKEnv(t)

	for _, addr := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := env.api.ValidateEmail(addr)
		require.NoError(t, err)
	}

	first, err := env.api.ListLogs(2, "")
	require.NoError(t, err)
	require.Len(t, first.Logs, 2)
	require.NotEmpty(t, first.NextCursor)
	assert.Equal(t, "validation", first.Logs[0].Type)
	assert.Equal(t, "/v1/validate/email", first.Logs[0].Endpoint)

	second, err := env.api.ListLogs(2, first.NextCursor)
	require.NoError(t, err)
	require.NotEmpty(t, second.Logs)
	assert.NotEqual(t, first.Logs[0].ID, second.Logs[0].ID)
	assert.NotEqual(t, first.Logs[1].ID, second.Logs[0].ID)
}
