package validate

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/cache"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/disposable"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/reason"
)

type countingResolver struct {
	mx      []string
	mxErr   error
	a       []string
	aErr    error
	aaaa    []string
	aaaaErr error
	calls   int
}

func (r *countingResolver) LookupMX(ctx context.Context, domain string) ([]string, error) {
	r.calls++
	return r.mx, r.mxErr
}

func (r *countingResolver) LookupA(ctx context.Context, domain string) ([]string, error) {
	return r.a, r.aErr
}

func (r *countingResolver) LookupAAAA(ctx context.Context, domain string) ([]string, error) {
	return r.aaaa, r.aaaaErr
}

type panicResolver struct{}

func (panicResolver) LookupMX(ctx context.Context, domain string) ([]string, error) {
	panic("resolver blew up")
}

func (panicResolver) LookupA(ctx context.Context, domain string) ([]string, error) {
	return nil, nil
}

func (panicResolver) LookupAAAA(ctx context.Context, domain string) ([]string, error) {
	return nil, nil
}

func newEmailValidator(t *testing.T, r *countingResolver, disposableDomains ...string) *EmailValidator {
	t.Helper()
	set := cache.NewMemorySet()
	if len(disposableDomains) > 0 {
		require.NoError(t, set.Swap(context.Background(), disposableDomains))
	}
	return NewEmailValidator(cache.NewMemoryCache(), r, disposable.NewChecker(set), slog.New(slog.DiscardHandler))
}

func TestEmailValidCase(t *testing.T) {
	v := newEmailValidator(t, &countingResolver{mx: []string{"mx.example.com."}})

	res := v.Validate(context.Background(), "Test@Example.com")
	assert.True(t, res.Valid)
	assert.Equal(t, "test@example.com", res.Normalized)
	assert.True(t, res.MXFound)
	assert.False(t, res.Disposable)
	assert.Empty(t, res.ReasonCodes)
	assert.Equal(t, int(EmailResultTTL.Seconds()), res.TTLSeconds)
}

func TestEmailDisposableDomain(t *testing.T) {
	v := newEmailValidator(t, &countingResolver{mx: []string{"mx.disposable.com."}}, "disposable.com")

	res := v.Validate(context.Background(), "user@disposable.com")
	assert.False(t, res.Valid)
	assert.True(t, res.Disposable)
	assert.True(t, res.MXFound)
	assert.Equal(t, []string{reason.EmailDisposableDomain}, res.ReasonCodes)
}

func TestEmailEmptyInput(t *testing.T) {
	v := newEmailValidator(t, &countingResolver{})

	for _, input := range []string{"", "   "} {
		res := v.Validate(context.Background(), input)
		assert.False(t, res.Valid)
		assert.Equal(t, "", res.Normalized)
		assert.Equal(t, []string{reason.EmailInvalidFormat}, res.ReasonCodes)
	}
}

func TestEmailSyntaxFailureSkipsDNS(t *testing.T) {
	r := &countingResolver{}
	v := newEmailValidator(t, r)

	res := v.Validate(context.Background(), "not-an-email")
	assert.False(t, res.Valid)
	assert.False(t, res.MXFound)
	assert.Contains(t, res.ReasonCodes, reason.EmailInvalidFormat)
	assert.Zero(t, r.calls)
}

func TestEmailMXFallbackToA(t *testing.T) {
	r := &countingResolver{mxErr: errors.New("no such host"), a: []string{"93.184.216.34"}}
	v := newEmailValidator(t, r)

	res := v.Validate(context.Background(), "user@example.com")
	assert.True(t, res.Valid)
	assert.True(t, res.MXFound)
}

func TestEmailNoMailServers(t *testing.T) {
	boom := errors.New("servfail")
	r := &countingResolver{mxErr: boom, aErr: boom, aaaaErr: boom}
	v := newEmailValidator(t, r)

	res := v.Validate(context.Background(), "user@example.com")
	assert.False(t, res.Valid)
	assert.False(t, res.MXFound)
	assert.Equal(t, []string{reason.EmailMXNotFound}, res.ReasonCodes)
}

func TestEmailResultCacheHit(t *testing.T) {
	r := &countingResolver{mx: []string{"mx.example.com."}}
	v := newEmailValidator(t, r)

	first := v.Validate(context.Background(), "user@example.com")
	second := v.Validate(context.Background(), "user@example.com")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, r.calls, "second call must be served from cache")
}

func TestEmailDomainFactsShared(t *testing.T) {
	r := &countingResolver{mx: []string{"mx.example.com."}}
	v := newEmailValidator(t, r)

	v.Validate(context.Background(), "alice@example.com")
	v.Validate(context.Background(), "bob@example.com")
	assert.Equal(t, 1, r.calls, "domain facts must be shared across addresses")
}

func TestEmailIDNDomain(t *testing.T) {
	r := &countingResolver{mx: []string{"mx.example.com."}}
	v := newEmailValidator(t, r)

	res := v.Validate(context.Background(), "user@bücher.example")
	assert.Equal(t, "user@xn--bcher-kva.example", res.Normalized)
}

func TestEmailPanicYieldsServerErrorUncached(t *testing.T) {
	c := cache.NewMemoryCache()
	v := NewEmailValidator(c, panicResolver{}, nil, slog.New(slog.DiscardHandler))

	res := v.Validate(context.Background(), "user@example.com")
	assert.False(t, res.Valid)
	assert.Equal(t, []string{reason.EmailServerError}, res.ReasonCodes)

	_, hit, err := c.Get(context.Background(), emailCacheKey("user@example.com"))
	require.NoError(t, err)
	assert.False(t, hit, "failed verdicts must not be cached")
}

func TestEmailInvalidFormatImpliesInvalid(t *testing.T) {
	v := newEmailValidator(t, &countingResolver{})
	for _, input := range []string{"", "a@", "@b.com", "a b@example.com", "user@nodot"} {
		res := v.Validate(context.Background(), input)
		if assert.Contains(t, res.ReasonCodes, reason.EmailInvalidFormat, "input %q", input) {
			assert.False(t, res.Valid, "input %q", input)
		}
	}
}
