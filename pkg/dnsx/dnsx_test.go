package dnsx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubResolver struct {
	mx, a, aaaa []string
	mxErr       error
	aErr        error
	aaaaErr     error
}

func (s stubResolver) LookupMX(ctx context.Context, domain string) ([]string, error) {
	return s.mx, s.mxErr
}

func (s stubResolver) LookupA(ctx context.Context, domain string) ([]string, error) {
	return s.a, s.aErr
}

func (s stubResolver) LookupAAAA(ctx context.Context, domain string) ([]string, error) {
	return s.aaaa, s.aaaaErr
}

func TestHasMailServersMX(t *testing.T) {
	r := stubResolver{mx: []string{"mx1.example.com."}}
	assert.True(t, HasMailServers(context.Background(), r, "example.com"))
}

func TestHasMailServersFallsBackToA(t *testing.T) {
	r := stubResolver{mxErr: errors.New("no such host"), a: []string{"93.184.216.34"}}
	assert.True(t, HasMailServers(context.Background(), r, "example.com"))
}

func TestHasMailServersFallsBackToAAAA(t *testing.T) {
	r := stubResolver{
		mxErr: errors.New("no such host"),
		aErr:  errors.New("no such host"),
		aaaa:  []string{"2606:2800:220:1:248:1893:25c8:1946"},
	}
	assert.True(t, HasMailServers(context.Background(), r, "example.com"))
}

func TestHasMailServersAllFail(t *testing.T) {
	boom := errors.New("servfail")
	r := stubResolver{mxErr: boom, aErr: boom, aaaaErr: boom}
	assert.False(t, HasMailServers(context.Background(), r, "nowhere.invalid"))
}

func TestHasMailServersEmptyAnswers(t *testing.T) {
	r := stubResolver{}
	assert.False(t, HasMailServers(context.Background(), r, "example.com"))
}
