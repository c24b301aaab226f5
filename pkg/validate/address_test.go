package validate

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/cache"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/geocode"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/reason"
)

type stubGeocoder struct {
	pt    *geocode.Point
	err   error
	calls int
}

func (g *stubGeocoder) Geocode(ctx context.Context, query string) (*geocode.Point, error) {
	g.calls++
	return g.pt, g.err
}

type stubPostal struct {
	cities map[string][]string
	err    error
}

func (s *stubPostal) PostalCities(ctx context.Context, country, postalCode string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.cities[country+":"+postalCode], nil
}

type stubBounds struct {
	boxes map[string]*Bounds
}

func (s *stubBounds) CountryBounds(ctx context.Context, country string) (*Bounds, error) {
	return s.boxes[country], nil
}

var usBounds = &Bounds{MinLat: 24.5, MaxLat: 49.4, MinLng: -125.0, MaxLng: -66.9}

func nycInput() AddressInput {
	return AddressInput{
		Line1:      "350 5th Ave",
		City:       "New York",
		State:      "NY",
		PostalCode: "10118",
		Country:    "us",
	}
}

func newAddressValidator(g *stubGeocoder, p *stubPostal, b *stubBounds) *AddressValidator {
	logger := slog.New(slog.DiscardHandler)
	var gc geocode.Geocoder
	if g != nil {
		gc = g
	}
	var pr PostalReference
	if p != nil {
		pr = p
	}
	var bs BoundsSource
	if b != nil {
		bs = b
	}
	return NewAddressValidator(cache.NewMemoryCache(), gc, pr, bs, logger)
}

func TestAddressHappyPath(t *testing.T) {
	g := &stubGeocoder{pt: &geocode.Point{Lat: 40.748, Lng: -73.985, Confidence: 0.9}}
	p := &stubPostal{cities: map[string][]string{"US:10118": {"New York"}}}
	b := &stubBounds{boxes: map[string]*Bounds{"US": usBounds}}

	res := newAddressValidator(g, p, b).Validate(context.Background(), nycInput())
	assert.True(t, res.Valid)
	assert.False(t, res.POBox)
	assert.True(t, res.PostalCityMatch)
	assert.True(t, res.InBounds)
	require.NotNil(t, res.Geo)
	assert.InDelta(t, 40.748, res.Geo.Lat, 1e-9)
	assert.Equal(t, "US", res.Normalized.Country)
	assert.Empty(t, res.ReasonCodes)
}

func TestAddressNormalizeFixedPoint(t *testing.T) {
	in := AddressInput{
		Line1:      "  350   5th  Ave ",
		City:       " New  York ",
		PostalCode: " 10118 ",
		Country:    " us ",
	}
	once := NormalizeAddress(in)
	twice := NormalizeAddress(AddressInput(once))
	assert.Equal(t, once, twice)
	assert.Equal(t, "350 5th Ave", once.Line1)
	assert.Equal(t, "US", once.Country)
	assert.Equal(t, "10118", once.PostalCode)
}

func TestDetectPOBox(t *testing.T) {
	cases := map[string]bool{
		"P.O. Box 123":        true,
		"PO Box 9":            true,
		"po box 42":           true,
		"Post Office Box 7":   true,
		"Postfach 710265":     true,
		"Apartado Postal 33":  true,
		"Apartado 120":        true,
		"Casilla de Correo 4": true,
		"Caixa Postal 1532":   true,
		"Boîte Postale 240":   true,
		"BP 52":               true,
		"350 5th Ave":         false,
		"Box Ave 12":          false,
		"1 Poborski St":       false,
	}
	for line, want := range cases {
		assert.Equal(t, want, DetectPOBox(line), "line %q", line)
	}
}

func TestAddressPOBoxInvalid(t *testing.T) {
	g := &stubGeocoder{pt: &geocode.Point{Lat: 40.7, Lng: -74.0}}
	p := &stubPostal{cities: map[string][]string{"US:10001": {"New York"}}}
	b := &stubBounds{boxes: map[string]*Bounds{"US": usBounds}}

	in := AddressInput{Line1: "P.O. Box 123", City: "New York", PostalCode: "10001", Country: "US"}
	res := newAddressValidator(g, p, b).Validate(context.Background(), in)
	assert.False(t, res.Valid)
	assert.True(t, res.POBox)
	assert.Contains(t, res.ReasonCodes, reason.AddressPOBox)
}

func TestAddressPostalCityMismatch(t *testing.T) {
	g := &stubGeocoder{pt: &geocode.Point{Lat: 40.7, Lng: -74.0}}
	p := &stubPostal{cities: map[string][]string{"US:10118": {"New York"}}}
	b := &stubBounds{boxes: map[string]*Bounds{"US": usBounds}}

	in := nycInput()
	in.City = "Boston"
	res := newAddressValidator(g, p, b).Validate(context.Background(), in)
	assert.False(t, res.Valid)
	assert.False(t, res.PostalCityMatch)
	assert.Contains(t, res.ReasonCodes, reason.AddressPostalCityMismatch)
}

func TestAddressPostalReferenceUnknown(t *testing.T) {
	g := &stubGeocoder{pt: &geocode.Point{Lat: 40.748, Lng: -73.985}}
	p := &stubPostal{cities: map[string][]string{}}
	b := &stubBounds{boxes: map[string]*Bounds{"US": usBounds}}

	res := newAddressValidator(g, p, b).Validate(context.Background(), nycInput())
	assert.True(t, res.Valid, "missing reference data must not flag the address")
	assert.True(t, res.PostalCityMatch)
	assert.Contains(t, res.ReasonCodes, reason.AddressPostalReferenceUnknown)
}

func TestAddressPostalReferenceError(t *testing.T) {
	g := &stubGeocoder{pt: &geocode.Point{Lat: 40.748, Lng: -73.985}}
	p := &stubPostal{err: errors.New("db down")}
	b := &stubBounds{boxes: map[string]*Bounds{"US": usBounds}}

	res := newAddressValidator(g, p, b).Validate(context.Background(), nycInput())
	assert.True(t, res.Valid)
	assert.Contains(t, res.ReasonCodes, reason.AddressPostalReferenceUnknown)
}

func TestAddressGeocodeFailed(t *testing.T) {
	g := &stubGeocoder{err: errors.New("provider timeout")}
	p := &stubPostal{cities: map[string][]string{"US:10118": {"New York"}}}

	res := newAddressValidator(g, p, nil).Validate(context.Background(), nycInput())
	assert.True(t, res.Valid, "geocode failure alone must not invalidate")
	assert.Nil(t, res.Geo)
	assert.False(t, res.InBounds)
	assert.Contains(t, res.ReasonCodes, reason.AddressGeocodeFailed)
}

func TestAddressOutOfBounds(t *testing.T) {
	g := &stubGeocoder{pt: &geocode.Point{Lat: 48.85, Lng: 2.35}} // Paris
	p := &stubPostal{cities: map[string][]string{"US:10118": {"New York"}}}
	b := &stubBounds{boxes: map[string]*Bounds{"US": usBounds}}

	res := newAddressValidator(g, p, b).Validate(context.Background(), nycInput())
	assert.False(t, res.Valid)
	assert.False(t, res.InBounds)
	assert.Contains(t, res.ReasonCodes, reason.AddressGeoOutOfBounds)
}

func TestAddressUnknownCountryBoundsPass(t *testing.T) {
	g := &stubGeocoder{pt: &geocode.Point{Lat: 40.748, Lng: -73.985}}
	p := &stubPostal{cities: map[string][]string{"US:10118": {"New York"}}}
	b := &stubBounds{boxes: map[string]*Bounds{}}

	res := newAddressValidator(g, p, b).Validate(context.Background(), nycInput())
	assert.True(t, res.Valid)
	assert.True(t, res.InBounds)
}

func TestAddressResultCached(t *testing.T) {
	g := &stubGeocoder{pt: &geocode.Point{Lat: 40.748, Lng: -73.985}}
	p := &stubPostal{cities: map[string][]string{"US:10118": {"New York"}}}
	v := newAddressValidator(g, p, nil)

	first := v.Validate(context.Background(), nycInput())
	second := v.Validate(context.Background(), nycInput())
	assert.Equal(t, first, second)
	assert.Equal(t, 1, g.calls, "second call must be served from cache")
}

func TestAddressHashIgnoresInputNoise(t *testing.T) {
	a := NormalizeAddress(AddressInput{Line1: "350 5th Ave", City: "New York", PostalCode: "10118", Country: "us"})
	b := NormalizeAddress(AddressInput{Line1: " 350  5th Ave ", City: "New York", PostalCode: "10118", Country: "US"})
	assert.Equal(t, AddressHash(a), AddressHash(b))

	c := NormalizeAddress(AddressInput{Line1: "351 5th Ave", City: "New York", PostalCode: "10118", Country: "US"})
	assert.NotEqual(t, AddressHash(a), AddressHash(c))
}

func TestGeocodeQuery(t *testing.T) {
	n := NormalizeAddress(nycInput())
	assert.Equal(t, "350 5th Ave, New York, NY, 10118, US", GeocodeQuery(n))
}
