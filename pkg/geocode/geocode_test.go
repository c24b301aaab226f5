package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocodeParsesFirstHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1600 Amphitheatre Pkwy", r.URL.Query().Get("q"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		w.Write([]byte(`[{"lat":"37.4224","lon":"-122.0841","importance":0.72},{"lat":"0","lon":"0"}]`))
	}))
	defer srv.Close()

	g := New(srv.URL, "")
	pt, err := g.Geocode(context.Background(), "1600 Amphitheatre Pkwy")
	require.NoError(t, err)
	require.NotNil(t, pt)
	assert.InDelta(t, 37.4224, pt.Lat, 1e-9)
	assert.InDelta(t, -122.0841, pt.Lng, 1e-9)
	assert.InDelta(t, 0.72, pt.Confidence, 1e-9)
}

func TestGeocodeNoHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	pt, err := New(srv.URL, "").Geocode(context.Background(), "nowhere at all")
	require.NoError(t, err)
	assert.Nil(t, pt)
}

func TestGeocodeSendsKeyWhenConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sekrit", r.URL.Query().Get("key"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "sekrit").Geocode(context.Background(), "q")
	require.NoError(t, err)
}

func TestGeocodeProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").Geocode(context.Background(), "q")
	assert.Error(t, err)
}
