package disposable

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/cache"
)

func TestRefreshSwapsNormalizedDomains(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["Tempdrop.IO", "mailinator.com.", "  ", "10minutemail.com"]`))
	}))
	defer srv.Close()

	set := cache.NewMemorySet()
	r := NewRefresher(set, srv.URL, slog.New(slog.DiscardHandler))
	require.NoError(t, r.Refresh(context.Background()))

	n, err := set.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	ok, err := set.Contains(context.Background(), "tempdrop.io")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRefreshKeepsOldSetOnEmptyUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	set := cache.NewMemorySet()
	require.NoError(t, set.Swap(context.Background(), []string{"tempdrop.io"}))

	r := NewRefresher(set, srv.URL, slog.New(slog.DiscardHandler))
	assert.Error(t, r.Refresh(context.Background()))

	ok, err := set.Contains(context.Background(), "tempdrop.io")
	require.NoError(t, err)
	assert.True(t, ok, "previous contents must survive a bad refresh")
}

func TestRefreshKeepsOldSetOnBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"a list"}`))
	}))
	defer srv.Close()

	set := cache.NewMemorySet()
	require.NoError(t, set.Swap(context.Background(), []string{"tempdrop.io"}))

	r := NewRefresher(set, srv.URL, slog.New(slog.DiscardHandler))
	assert.Error(t, r.Refresh(context.Background()))

	ok, _ := set.Contains(context.Background(), "tempdrop.io")
	assert.True(t, ok)
}

func TestIsDisposableMatchesRegistrableDomain(t *testing.T) {
	set := cache.NewMemorySet()
	require.NoError(t, set.Swap(context.Background(), []string{"tempdrop.io"}))
	c := NewChecker(set)

	ok, err := c.IsDisposable(context.Background(), "mail.tempdrop.io")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsDisposable(context.Background(), "TEMPDROP.IO.")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsDisposable(context.Background(), "example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "tempdrop.io", Normalize("  Tempdrop.IO.  "))
	assert.Equal(t, "", Normalize("   "))
}
