// Package reason defines the closed registry of reason codes emitted by
// validators, dedupe checks, and the order evaluator. Codes are stable
// identifiers in the form category.snake_case and MUST NOT change between
// releases; clients branch on them.
package reason

import "sort"

// Severity grades how strongly a code should influence a caller's decision.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

const (
	// --- Email ---
	EmailInvalidFormat    = "email.invalid_format"
	EmailMXNotFound       = "email.mx_not_found"
	EmailDisposableDomain = "email.disposable_domain"
	EmailServerError      = "email.server_error" // validator failed unexpectedly; verdict not cached

	// --- Phone ---
	PhoneInvalidFormat = "phone.invalid_format"
	PhoneUnparseable   = "phone.unparseable"
	PhoneOTPSent       = "phone.otp_sent"
	PhoneOTPSendFailed = "phone.otp_send_failed"
	PhoneOTPInvalid    = "phone.otp_invalid"

	// --- Address ---
	AddressMissingField           = "address.missing_field"
	AddressInvalidCountry         = "address.invalid_country"
	AddressPOBox                  = "address.po_box"
	AddressPostalCityMismatch     = "address.postal_city_mismatch"
	AddressPostalReferenceUnknown = "address.postal_reference_unknown" // tenant has no reference data for the country
	AddressGeocodeFailed          = "address.geocode_failed"
	AddressGeoOutOfBounds         = "address.geo_out_of_bounds"

	// --- Name ---
	NameInvalidFormat = "name.invalid_format"
	NameTooLong       = "name.too_long"
	NameNumeric       = "name.numeric"

	// --- Tax ID ---
	TaxIDInvalidFormat    = "taxid.invalid_format"
	TaxIDInvalidChecksum  = "taxid.invalid_checksum"
	TaxIDUnsupportedType  = "taxid.unsupported_type"
	TaxIDViesInvalid      = "taxid.vies_invalid"
	TaxIDViesUnavailable  = "taxid.vies_unavailable" // registry down or timed out; format result stands
	TaxIDCountryMismatch  = "taxid.country_mismatch"

	// --- Order evaluation ---
	OrderDuplicateDetected   = "order.duplicate_detected"
	OrderCustomerDedupeMatch = "order.customer_dedupe_match"
	OrderAddressDedupeMatch  = "order.address_dedupe_match"
	OrderPOBoxBlock          = "order.po_box_block"
	OrderDisposableEmail     = "order.disposable_email"
	OrderHighRiskRTO         = "order.high_risk_rto"
	OrderHighValue           = "order.high_value"

	// --- Dedupe ---
	DedupeExactMatch = "dedupe.exact_match"
	DedupeFuzzyMatch = "dedupe.fuzzy_match"
	DedupeMerged     = "dedupe.merged"

	// --- Webhook ---
	WebhookSendFailed = "webhook.send_failed"

	// --- Batch ---
	BatchSizeExceeded    = "batch.size_exceeded"
	BatchUnsupportedType = "batch.unsupported_type"
	BatchPartialFailure  = "batch.partial_failure"
)

// Info is the catalogue entry behind a code.
type Info struct {
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Entry pairs a code with its catalogue entry, for listing.
type Entry struct {
	Code string `json:"code"`
	Info
}

var catalogue = map[string]Info{
	EmailInvalidFormat:    {"email", SeverityHigh, "address does not parse as a valid email"},
	EmailMXNotFound:       {"email", SeverityHigh, "domain has no MX, A, or AAAA records"},
	EmailDisposableDomain: {"email", SeverityMedium, "domain belongs to a disposable email provider"},
	EmailServerError:      {"email", SeverityMedium, "validator failed unexpectedly; verdict unknown"},

	PhoneInvalidFormat: {"phone", SeverityHigh, "number is not valid for the detected region"},
	PhoneUnparseable:   {"phone", SeverityHigh, "input could not be parsed as a phone number"},
	PhoneOTPSent:       {"phone", SeverityLow, "verification code sent to the number"},
	PhoneOTPSendFailed: {"phone", SeverityMedium, "verification provider rejected the send"},
	PhoneOTPInvalid:    {"phone", SeverityHigh, "submitted verification code did not match"},

	AddressMissingField:           {"address", SeverityHigh, "a required address field is empty"},
	AddressInvalidCountry:         {"address", SeverityHigh, "country is not a known ISO 3166-1 alpha-2 code"},
	AddressPOBox:                  {"address", SeverityMedium, "address matches a PO box pattern"},
	AddressPostalCityMismatch:     {"address", SeverityHigh, "postal code does not belong to the stated city"},
	AddressPostalReferenceUnknown: {"address", SeverityLow, "no postal reference data for this country"},
	AddressGeocodeFailed:          {"address", SeverityMedium, "geocoder returned no result for the address"},
	AddressGeoOutOfBounds:         {"address", SeverityHigh, "geocoded point falls outside the stated country"},

	NameInvalidFormat: {"name", SeverityHigh, "name is empty or contains disallowed characters"},
	NameTooLong:       {"name", SeverityMedium, "name exceeds the maximum accepted length"},
	NameNumeric:       {"name", SeverityHigh, "name consists only of digits"},

	TaxIDInvalidFormat:   {"taxid", SeverityHigh, "identifier does not match the format for its type"},
	TaxIDInvalidChecksum: {"taxid", SeverityHigh, "check digits do not verify"},
	TaxIDUnsupportedType: {"taxid", SeverityMedium, "identifier type is not supported"},
	TaxIDViesInvalid:     {"taxid", SeverityHigh, "VIES reports the VAT number as not registered"},
	TaxIDViesUnavailable: {"taxid", SeverityLow, "VIES could not be reached; checksum result stands"},
	TaxIDCountryMismatch: {"taxid", SeverityMedium, "VAT prefix does not match the stated country"},

	OrderDuplicateDetected:   {"order", SeverityHigh, "an order with the same external id or signature exists"},
	OrderCustomerDedupeMatch: {"order", SeverityMedium, "customer matches an existing customer record"},
	OrderAddressDedupeMatch:  {"order", SeverityLow, "shipping address matches an existing address record"},
	OrderPOBoxBlock:          {"order", SeverityMedium, "shipping address is a PO box"},
	OrderDisposableEmail:     {"order", SeverityMedium, "customer email uses a disposable domain"},
	OrderHighRiskRTO:         {"order", SeverityHigh, "destination region has a high return-to-origin rate"},
	OrderHighValue:           {"order", SeverityLow, "order total exceeds the high-value threshold"},

	DedupeExactMatch: {"dedupe", SeverityHigh, "an identity field matches an existing record exactly"},
	DedupeFuzzyMatch: {"dedupe", SeverityMedium, "record is similar to an existing record above threshold"},
	DedupeMerged:     {"dedupe", SeverityLow, "duplicate records were merged into the survivor"},

	WebhookSendFailed: {"webhook", SeverityMedium, "delivery exhausted all attempts"},

	BatchSizeExceeded:    {"batch", SeverityMedium, "batch exceeds the maximum item count"},
	BatchUnsupportedType: {"batch", SeverityMedium, "batch item type has no validator"},
	BatchPartialFailure:  {"batch", SeverityLow, "one or more batch items failed validation"},
}

// Lookup returns the catalogue entry for code.
func Lookup(code string) (Info, bool) {
	info, ok := catalogue[code]
	return info, ok
}

// Valid reports whether code is part of the registry.
func Valid(code string) bool {
	_, ok := catalogue[code]
	return ok
}

// All returns every registered code with its entry, sorted by category then code.
func All() []Entry {
	out := make([]Entry, 0, len(catalogue))
	for code, info := range catalogue {
		out = append(out, Entry{Code: code, Info: info})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// Categories returns the distinct categories in sorted order.
func Categories() []string {
	seen := map[string]bool{}
	for _, info := range catalogue {
		seen[info.Category] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Merge concatenates code lists, dropping duplicates while preserving the
// position of each code's first occurrence. Response builders funnel every
// reason list through here so callers never see a code twice.
func Merge(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range lists {
		for _, code := range list {
			if seen[code] {
				continue
			}
			seen[code] = true
			out = append(out, code)
		}
	}
	return out
}
