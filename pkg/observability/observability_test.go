package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "orbitcheck", config.ServiceName)
	require.Equal(t, "development", config.Environment)
	require.Empty(t, config.OTLPEndpoint, "telemetry is off until an endpoint is configured")
	require.Equal(t, 1.0, config.SampleRate)
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{})
	require.NoError(t, err)
	require.NotNil(t, p)

	require.NotNil(t, p.Tracer())
	require.NotNil(t, p.Meter())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderNilConfig(t *testing.T) {
	p, err := New(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestTrackRequestDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{})
	require.NoError(t, err)

	ctx, done := p.TrackRequest(context.Background(), "POST", "/v1/validate/email")
	require.NotNil(t, ctx)

	time.Sleep(time.Millisecond)
	done(200)
	done2 := func() {
		_, d := p.TrackRequest(context.Background(), "GET", "/health")
		d(503)
	}
	require.NotPanics(t, done2, "error statuses must record safely with no exporter")
}
