package vies

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ms/DE/vat/811128135", r.URL.Path)
		w.Write([]byte(`{"isValid":true,"name":"EXAMPLE GMBH","address":"BERLIN"}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL).Lookup(context.Background(), "de", "811128135")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "EXAMPLE GMBH", res.Name)
}

func TestLookupInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"isValid":false}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL).Lookup(context.Background(), "DE", "000000000")
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestLookupRegistryDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Lookup(context.Background(), "DE", "811128135")
	assert.Error(t, err)
}

func TestDefaultBaseURL(t *testing.T) {
	c := New("")
	assert.Equal(t, DefaultBaseURL, c.baseURL)
}
