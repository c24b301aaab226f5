package validate

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/reason"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/vies"
)

type stubRegistry struct {
	valid       bool
	err         error
	lastCountry string
	lastNumber  string
}

func (s *stubRegistry) Lookup(ctx context.Context, countryCode, vatNumber string) (*vies.Result, error) {
	s.lastCountry = countryCode
	s.lastNumber = vatNumber
	if s.err != nil {
		return nil, s.err
	}
	return &vies.Result{Valid: s.valid}, nil
}

func newTaxIDValidator(r vies.Registry) *TaxIDValidator {
	return NewTaxIDValidator(r, slog.New(slog.DiscardHandler))
}

func TestTaxIDValidNumbers(t *testing.T) {
	cases := []struct {
		typ   string
		value string
		norm  string
	}{
		{"cpf", "529.982.247-25", "52998224725"},
		{"cnpj", "11.222.333/0001-81", "11222333000181"},
		{"rfc", "GODE561231GR8", "GODE561231GR8"},
		{"cuit", "20-26756539-3", "20267565393"},
		{"rut", "12.345.678-5", "123456785"},
		{"ruc", "20100070970", "20100070970"},
		{"nit", "900.373.913-4", "9003739134"},
		{"nif", "12345678Z", "12345678Z"},
		{"nif", "X1234567L", "X1234567L"},
		{"ein", "12-3456789", "123456789"},
		{"vat", "DE 811 128 135", "DE811128135"},
	}
	v := newTaxIDValidator(nil)
	for _, tc := range cases {
		res := v.Validate(context.Background(), tc.typ, tc.value, "")
		assert.True(t, res.Valid, "%s %q: %v", tc.typ, tc.value, res.ReasonCodes)
		assert.Equal(t, tc.norm, res.Normalized, "%s %q", tc.typ, tc.value)
		assert.Empty(t, res.ReasonCodes, "%s %q", tc.typ, tc.value)
	}
}

func TestTaxIDChecksumFailures(t *testing.T) {
	cases := []struct{ typ, value string }{
		{"cpf", "529.982.247-26"},
		{"cpf", "111.111.111-11"},
		{"cnpj", "11.222.333/0001-82"},
		{"cuit", "20-26756539-4"},
		{"rut", "12.345.678-6"},
		{"ruc", "20100070971"},
		{"nit", "900.373.913-5"},
		{"nif", "12345678A"},
	}
	v := newTaxIDValidator(nil)
	for _, tc := range cases {
		res := v.Validate(context.Background(), tc.typ, tc.value, "")
		assert.False(t, res.Valid, "%s %q", tc.typ, tc.value)
		assert.Equal(t, []string{reason.TaxIDInvalidChecksum}, res.ReasonCodes, "%s %q", tc.typ, tc.value)
	}
}

func TestTaxIDFormatFailures(t *testing.T) {
	cases := []struct{ typ, value string }{
		{"cpf", "1234"},
		{"cnpj", "11222333"},
		{"rfc", "XX123"},
		{"rfc", "GODE561341GR8"}, // month 13
		{"cuit", "20ABC"},
		{"ruc", "99100070970"}, // unknown entity prefix
		{"nif", "1234Z"},
		{"ein", "12-345"},
		{"vat", "ZZ12345678"},
		{"vat", "DE12345"},
	}
	v := newTaxIDValidator(nil)
	for _, tc := range cases {
		res := v.Validate(context.Background(), tc.typ, tc.value, "")
		assert.False(t, res.Valid, "%s %q", tc.typ, tc.value)
		assert.Equal(t, []string{reason.TaxIDInvalidFormat}, res.ReasonCodes, "%s %q", tc.typ, tc.value)
	}
}

func TestTaxIDUnsupportedType(t *testing.T) {
	res := newTaxIDValidator(nil).Validate(context.Background(), "ssn", "123-45-6789", "")
	assert.False(t, res.Valid)
	assert.Equal(t, []string{reason.TaxIDUnsupportedType}, res.ReasonCodes)
}

func TestTaxIDCountryAgreement(t *testing.T) {
	v := newTaxIDValidator(nil)

	res := v.Validate(context.Background(), "cpf", "529.982.247-25", "br")
	assert.True(t, res.Valid)
	assert.Equal(t, "BR", res.Country)

	res = v.Validate(context.Background(), "cpf", "529.982.247-25", "MX")
	assert.False(t, res.Valid)
	assert.Contains(t, res.ReasonCodes, reason.TaxIDCountryMismatch)

	res = v.Validate(context.Background(), "vat", "DE811128135", "FR")
	assert.False(t, res.Valid)
	assert.Contains(t, res.ReasonCodes, reason.TaxIDCountryMismatch)
}

func TestTaxIDVATViesValid(t *testing.T) {
	reg := &stubRegistry{valid: true}
	res := newTaxIDValidator(reg).Validate(context.Background(), "vat", "DE811128135", "")
	assert.True(t, res.Valid)
	assert.Empty(t, res.ReasonCodes)
	assert.Equal(t, "DE", reg.lastCountry)
	assert.Equal(t, "811128135", reg.lastNumber)
}

func TestTaxIDVATViesInvalid(t *testing.T) {
	reg := &stubRegistry{valid: false}
	res := newTaxIDValidator(reg).Validate(context.Background(), "vat", "DE811128135", "")
	assert.False(t, res.Valid)
	assert.Equal(t, []string{reason.TaxIDViesInvalid}, res.ReasonCodes)
}

func TestTaxIDVATViesUnavailable(t *testing.T) {
	reg := &stubRegistry{err: errors.New("gateway timeout")}
	res := newTaxIDValidator(reg).Validate(context.Background(), "vat", "DE811128135", "")
	assert.True(t, res.Valid, "registry outage must leave the format verdict standing")
	assert.Equal(t, []string{reason.TaxIDViesUnavailable}, res.ReasonCodes)
}

func TestTaxIDViesSkippedForBadFormat(t *testing.T) {
	reg := &stubRegistry{valid: true}
	res := newTaxIDValidator(reg).Validate(context.Background(), "vat", "DE12", "")
	assert.False(t, res.Valid)
	assert.Empty(t, reg.lastCountry, "registry must not be called for malformed numbers")
}
