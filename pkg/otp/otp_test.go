package otp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Verifications", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+14155550100", r.PostForm.Get("To"))
		assert.Equal(t, "sms", r.PostForm.Get("Channel"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "tok", pass)
		w.Write([]byte(`{"sid":"VE9f2","status":"pending"}`))
	}))
	defer srv.Close()

	id, err := New(srv.URL, "AC123", "tok").Start(context.Background(), "+14155550100")
	require.NoError(t, err)
	assert.Equal(t, "VE9f2", id)
}

func TestCheckApproved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/VerificationCheck", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "VE9f2", r.PostForm.Get("VerificationSid"))
		assert.Equal(t, "123456", r.PostForm.Get("Code"))
		w.Write([]byte(`{"sid":"VE9f2","status":"approved"}`))
	}))
	defer srv.Close()

	ok, err := New(srv.URL, "AC123", "tok").Check(context.Background(), "VE9f2", "123456")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sid":"VE9f2","status":"pending"}`))
	}))
	defer srv.Close()

	ok, err := New(srv.URL, "AC123", "tok").Check(context.Background(), "VE9f2", "000000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStartProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "AC123", "tok").Start(context.Background(), "+14155550100")
	assert.Error(t, err)
}
