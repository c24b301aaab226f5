package validate

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/reason"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/vies"
)

// TaxIDResult is the verdict for one tax identifier.
type TaxIDResult struct {
	Valid       bool     `json:"valid"`
	Type        string   `json:"type"`
	Normalized  string   `json:"normalized"`
	Country     string   `json:"country,omitempty"`
	ReasonCodes []string `json:"reason_codes"`
}

// taxIDCountry maps each supported type to its issuing country. VAT is
// pan-EU and carries its country in the prefix.
var taxIDCountry = map[string]string{
	"cpf":  "BR",
	"cnpj": "BR",
	"rfc":  "MX",
	"cuit": "AR",
	"rut":  "CL",
	"ruc":  "PE",
	"nit":  "CO",
	"nif":  "ES",
	"ein":  "US",
}

// TaxIDValidator runs per-type format and checksum validation, with an
// optional VIES lookup for EU VAT numbers.
type TaxIDValidator struct {
	registry vies.Registry
	logger   *slog.Logger
}

// NewTaxIDValidator wires the validator. registry may be nil; VAT numbers
// then get format-level validation only.
func NewTaxIDValidator(registry vies.Registry, logger *slog.Logger) *TaxIDValidator {
	return &TaxIDValidator{registry: registry, logger: logger}
}

// Validate checks value as a tax ID of the given type. country, when
// supplied, must agree with the type's issuing country. The VIES verdict
// for VAT is advisory: registry outages leave the format-level verdict in
// place with taxid.vies_unavailable recorded.
func (v *TaxIDValidator) Validate(ctx context.Context, typ, value, country string) *TaxIDResult {
	typ = strings.ToLower(strings.TrimSpace(typ))
	res := &TaxIDResult{
		Type:        typ,
		Normalized:  NormalizeTaxID(value),
		ReasonCodes: []string{},
	}

	var formatOK, checksumOK bool
	switch typ {
	case "cpf":
		formatOK, checksumOK = checkCPF(res.Normalized)
	case "cnpj":
		formatOK, checksumOK = checkCNPJ(res.Normalized)
	case "rfc":
		formatOK, checksumOK = checkRFC(res.Normalized)
	case "cuit":
		formatOK, checksumOK = checkCUIT(res.Normalized)
	case "rut":
		formatOK, checksumOK = checkRUT(res.Normalized)
	case "ruc":
		formatOK, checksumOK = checkRUC(res.Normalized)
	case "nit":
		formatOK, checksumOK = checkNIT(res.Normalized)
	case "nif":
		formatOK, checksumOK = checkNIF(res.Normalized)
	case "ein":
		formatOK, checksumOK = checkEIN(res.Normalized)
	case "vat":
		formatOK, checksumOK = checkVAT(res.Normalized)
	default:
		res.ReasonCodes = append(res.ReasonCodes, reason.TaxIDUnsupportedType)
		return res
	}

	if !formatOK {
		res.ReasonCodes = append(res.ReasonCodes, reason.TaxIDInvalidFormat)
		return res
	}
	if !checksumOK {
		res.ReasonCodes = append(res.ReasonCodes, reason.TaxIDInvalidChecksum)
		return res
	}
	res.Valid = true

	issuer := taxIDCountry[typ]
	if typ == "vat" {
		issuer = res.Normalized[:2]
	}
	res.Country = issuer
	if country != "" && !strings.EqualFold(country, issuer) {
		res.Valid = false
		res.ReasonCodes = append(res.ReasonCodes, reason.TaxIDCountryMismatch)
		return res
	}

	if typ == "vat" && v.registry != nil {
		lookup, err := v.registry.Lookup(ctx, res.Normalized[:2], res.Normalized[2:])
		switch {
		case err != nil:
			v.logger.Warn("vies lookup failed", "error", err)
			res.ReasonCodes = append(res.ReasonCodes, reason.TaxIDViesUnavailable)
		case !lookup.Valid:
			res.Valid = false
			res.ReasonCodes = append(res.ReasonCodes, reason.TaxIDViesInvalid)
		}
	}
	return res
}

// NormalizeTaxID strips separators and uppercases; tax IDs compare on
// letters and digits only.
func NormalizeTaxID(value string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(value)) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || r == 'Ñ' || r == '&' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func allSame(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

// checkCPF validates the Brazilian individual taxpayer number: 11 digits
// with two mod-11 check digits. Repdigit sequences pass the arithmetic but
// are reserved, so they fail the checksum.
func checkCPF(s string) (formatOK, checksumOK bool) {
	if len(s) != 11 || !allDigits(s) {
		return false, false
	}
	if allSame(s) {
		return true, false
	}
	for _, n := range []int{9, 10} {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(s[i]-'0') * (n + 1 - i)
		}
		check := sum * 10 % 11 % 10
		if check != int(s[n]-'0') {
			return true, false
		}
	}
	return true, true
}

var cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
var cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}

// checkCNPJ validates the Brazilian company number: 14 digits, two
// weighted mod-11 check digits.
func checkCNPJ(s string) (formatOK, checksumOK bool) {
	if len(s) != 14 || !allDigits(s) {
		return false, false
	}
	if allSame(s) {
		return true, false
	}
	for _, weights := range [][]int{cnpjWeights1, cnpjWeights2} {
		sum := 0
		for i, w := range weights {
			sum += int(s[i]-'0') * w
		}
		check := 11 - sum%11
		if check >= 10 {
			check = 0
		}
		if check != int(s[len(weights)]-'0') {
			return true, false
		}
	}
	return true, true
}

var rfcPattern = regexp.MustCompile(`^[A-ZÑ&]{3,4}\d{6}[A-Z0-9]{3}$`)

// checkRFC validates the Mexican RFC shape and its embedded date. The
// homoclave has no public checksum, so format passing implies valid.
func checkRFC(s string) (formatOK, checksumOK bool) {
	if !rfcPattern.MatchString(s) {
		return false, false
	}
	datePos := len(s) - 9
	month := (int(s[datePos+2]-'0') * 10) + int(s[datePos+3]-'0')
	day := (int(s[datePos+4]-'0') * 10) + int(s[datePos+5]-'0')
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return false, false
	}
	return true, true
}

var cuitWeights = []int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

// checkCUIT validates the Argentine CUIT/CUIL: 11 digits, weighted mod-11.
func checkCUIT(s string) (formatOK, checksumOK bool) {
	if len(s) != 11 || !allDigits(s) {
		return false, false
	}
	sum := 0
	for i, w := range cuitWeights {
		sum += int(s[i]-'0') * w
	}
	check := 11 - sum%11
	switch check {
	case 11:
		check = 0
	case 10:
		check = 9
	}
	return true, check == int(s[10]-'0')
}

// checkRUT validates the Chilean RUT: numeric body plus a mod-11 check
// character that may be K.
func checkRUT(s string) (formatOK, checksumOK bool) {
	if len(s) < 2 || len(s) > 9 {
		return false, false
	}
	body, dv := s[:len(s)-1], s[len(s)-1]
	if !allDigits(body) || (dv != 'K' && (dv < '0' || dv > '9')) {
		return false, false
	}
	sum, factor := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}
	var want byte
	switch r := 11 - sum%11; r {
	case 11:
		want = '0'
	case 10:
		want = 'K'
	default:
		want = byte('0' + r)
	}
	return true, dv == want
}

var rucPrefixes = map[string]bool{"10": true, "15": true, "16": true, "17": true, "20": true}
var rucWeights = []int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

// checkRUC validates the Peruvian RUC: 11 digits, known entity prefix,
// weighted mod-11.
func checkRUC(s string) (formatOK, checksumOK bool) {
	if len(s) != 11 || !allDigits(s) || !rucPrefixes[s[:2]] {
		return false, false
	}
	sum := 0
	for i, w := range rucWeights {
		sum += int(s[i]-'0') * w
	}
	check := (11 - sum%11) % 10
	return true, check == int(s[10]-'0')
}

var nitWeights = []int{3, 7, 13, 17, 19, 23, 29, 37, 41, 43, 47, 53, 59, 67, 71}

// checkNIT validates the Colombian NIT: body of up to 15 digits plus a
// prime-weighted mod-11 verification digit.
func checkNIT(s string) (formatOK, checksumOK bool) {
	if len(s) < 3 || len(s) > 16 || !allDigits(s) {
		return false, false
	}
	body, dv := s[:len(s)-1], int(s[len(s)-1]-'0')
	sum := 0
	for i := 0; i < len(body); i++ {
		sum += int(body[len(body)-1-i]-'0') * nitWeights[i]
	}
	check := sum % 11
	if check >= 2 {
		check = 11 - check
	}
	return true, check == dv
}

const nifLetters = "TRWAGMYFPDXBNJZSQVHLCKE"

var dniPattern = regexp.MustCompile(`^\d{8}[A-Z]$`)
var niePattern = regexp.MustCompile(`^[XYZ]\d{7}[A-Z]$`)

// checkNIF validates the Spanish personal NIF in DNI or NIE form: the
// control letter indexes the number mod 23.
func checkNIF(s string) (formatOK, checksumOK bool) {
	var num int
	switch {
	case dniPattern.MatchString(s):
		for i := 0; i < 8; i++ {
			num = num*10 + int(s[i]-'0')
		}
	case niePattern.MatchString(s):
		num = int(strings.IndexByte("XYZ", s[0]))
		for i := 1; i < 8; i++ {
			num = num*10 + int(s[i]-'0')
		}
	default:
		return false, false
	}
	return true, s[len(s)-1] == nifLetters[num%23]
}

// checkEIN validates the US employer identification number. The IRS
// publishes no check digit; nine digits is the whole contract.
func checkEIN(s string) (formatOK, checksumOK bool) {
	ok := len(s) == 9 && allDigits(s)
	return ok, ok
}

// euVATPatterns are the national formats behind the two-letter prefix.
var euVATPatterns = map[string]*regexp.Regexp{
	"AT": regexp.MustCompile(`^U\d{8}$`),
	"BE": regexp.MustCompile(`^[01]\d{9}$`),
	"BG": regexp.MustCompile(`^\d{9,10}$`),
	"CY": regexp.MustCompile(`^\d{8}[A-Z]$`),
	"CZ": regexp.MustCompile(`^\d{8,10}$`),
	"DE": regexp.MustCompile(`^\d{9}$`),
	"DK": regexp.MustCompile(`^\d{8}$`),
	"EE": regexp.MustCompile(`^\d{9}$`),
	"EL": regexp.MustCompile(`^\d{9}$`),
	"ES": regexp.MustCompile(`^[A-Z0-9]\d{7}[A-Z0-9]$`),
	"FI": regexp.MustCompile(`^\d{8}$`),
	"FR": regexp.MustCompile(`^[A-Z0-9]{2}\d{9}$`),
	"HR": regexp.MustCompile(`^\d{11}$`),
	"HU": regexp.MustCompile(`^\d{8}$`),
	"IE": regexp.MustCompile(`^\d{7}[A-Z]{1,2}$|^\d[A-Z0-9+*]\d{5}[A-Z]$`),
	"IT": regexp.MustCompile(`^\d{11}$`),
	"LT": regexp.MustCompile(`^(\d{9}|\d{12})$`),
	"LU": regexp.MustCompile(`^\d{8}$`),
	"LV": regexp.MustCompile(`^\d{11}$`),
	"MT": regexp.MustCompile(`^\d{8}$`),
	"NL": regexp.MustCompile(`^\d{9}B\d{2}$`),
	"PL": regexp.MustCompile(`^\d{10}$`),
	"PT": regexp.MustCompile(`^\d{9}$`),
	"RO": regexp.MustCompile(`^\d{2,10}$`),
	"SE": regexp.MustCompile(`^\d{12}$`),
	"SI": regexp.MustCompile(`^\d{8}$`),
	"SK": regexp.MustCompile(`^\d{10}$`),
}

// checkVAT validates the EU VAT shape: member-state prefix plus the
// national pattern. Checksums vary per state and VIES is the authority,
// so format passing implies checksum passing here.
func checkVAT(s string) (formatOK, checksumOK bool) {
	if len(s) < 4 {
		return false, false
	}
	pattern, ok := euVATPatterns[s[:2]]
	if !ok {
		return false, false
	}
	if !pattern.MatchString(s[2:]) {
		return false, false
	}
	return true, true
}
