package validate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/cache"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/geocode"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/reason"
)

// AddressResultTTL is how long a full address verdict stays cached.
const AddressResultTTL = 7 * 24 * time.Hour

// AddressInput is the structured address as submitted.
type AddressInput struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// NormalizedAddress is the canonical form used for hashing and storage.
type NormalizedAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Geo is a geocoding hit attached to a validated address.
type Geo struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Confidence float64 `json:"confidence,omitempty"`
}

// AddressResult is the verdict for one address.
type AddressResult struct {
	Valid           bool              `json:"valid"`
	Normalized      NormalizedAddress `json:"normalized"`
	Geo             *Geo              `json:"geo,omitempty"`
	POBox           bool              `json:"po_box"`
	PostalCityMatch bool              `json:"postal_city_match"`
	InBounds        bool              `json:"in_bounds"`
	ReasonCodes     []string          `json:"reason_codes"`
	TTLSeconds      int               `json:"ttl_seconds"`
}

// Bounds is a country bounding box from the reference table.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Contains reports whether the point lies inside the box.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// PostalReference answers which cities a postal code belongs to. An empty
// slice means the reference has no data for that code.
type PostalReference interface {
	PostalCities(ctx context.Context, country, postalCode string) ([]string, error)
}

// BoundsSource answers country bounding boxes. nil means the country is
// not in the reference table.
type BoundsSource interface {
	CountryBounds(ctx context.Context, country string) (*Bounds, error)
}

// poBoxPatterns match post-office-box forms across the markets the service
// operates in. Checked against line1 and line2, case-insensitively.
var poBoxPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bp\.?\s*o\.?\s*box\b`),
	regexp.MustCompile(`(?i)\bpost\s*office\s*box\b`),
	regexp.MustCompile(`(?i)\bpostfach\b`),
	regexp.MustCompile(`(?i)\bapartado(\s+postal)?\b`),
	regexp.MustCompile(`(?i)\bcasilla(\s+de\s+correos?)?\b`),
	regexp.MustCompile(`(?i)\bcaixa\s+postal\b`),
	regexp.MustCompile(`(?i)\bbo[iî]te\s+postale\b`),
	regexp.MustCompile(`(?i)\bb\.?p\.?\s*\d+`),
}

var spaceRun = regexp.MustCompile(`\s+`)

// AddressValidator normalizes, flags, and geocodes postal addresses.
type AddressValidator struct {
	cache    cache.Cache
	geocoder geocode.Geocoder
	postal   PostalReference
	bounds   BoundsSource
	logger   *slog.Logger
}

// NewAddressValidator wires the validator. geocoder, postal, and bounds may
// each be nil; the corresponding check then degrades per its reason code.
func NewAddressValidator(c cache.Cache, g geocode.Geocoder, p PostalReference, b BoundsSource, logger *slog.Logger) *AddressValidator {
	return &AddressValidator{cache: c, geocoder: g, postal: p, bounds: b, logger: logger}
}

// Validate runs the full address pipeline: normalize, PO-box detection,
// postal-city coherence, geocoding, and country-bounds check.
func (v *AddressValidator) Validate(ctx context.Context, in AddressInput) *AddressResult {
	normalized := NormalizeAddress(in)

	key := "validator:address:" + AddressHash(normalized)
	if cached := v.cachedResult(ctx, key); cached != nil {
		return cached
	}

	res := &AddressResult{
		Normalized:  normalized,
		ReasonCodes: []string{},
		TTLSeconds:  int(AddressResultTTL.Seconds()),
	}

	res.POBox = DetectPOBox(normalized.Line1, normalized.Line2)
	if res.POBox {
		res.ReasonCodes = append(res.ReasonCodes, reason.AddressPOBox)
	}

	res.PostalCityMatch = v.postalCityMatch(ctx, normalized, &res.ReasonCodes)

	if v.geocoder != nil {
		pt, err := v.geocoder.Geocode(ctx, GeocodeQuery(normalized))
		if err != nil {
			v.logger.Warn("geocode failed", "error", err)
		}
		if pt != nil {
			res.Geo = &Geo{Lat: pt.Lat, Lng: pt.Lng, Confidence: pt.Confidence}
		}
	}
	if res.Geo == nil {
		res.ReasonCodes = append(res.ReasonCodes, reason.AddressGeocodeFailed)
	} else {
		res.InBounds = v.inBounds(ctx, normalized.Country, res.Geo)
		if !res.InBounds {
			res.ReasonCodes = append(res.ReasonCodes, reason.AddressGeoOutOfBounds)
		}
	}

	res.Valid = !res.POBox && res.PostalCityMatch && (res.Geo == nil || res.InBounds)
	v.store(ctx, key, res)
	return res
}

// NormalizeAddress canonicalizes field by field: NFC, trimmed, interior
// whitespace collapsed, country and postal code uppercased. Normalizing an
// already-normalized address returns it unchanged.
func NormalizeAddress(in AddressInput) NormalizedAddress {
	return NormalizedAddress{
		Line1:      normField(in.Line1),
		Line2:      normField(in.Line2),
		City:       normField(in.City),
		State:      normField(in.State),
		PostalCode: strings.ToUpper(normField(in.PostalCode)),
		Country:    strings.ToUpper(normField(in.Country)),
	}
}

func normField(s string) string {
	return spaceRun.ReplaceAllString(strings.TrimSpace(norm.NFC.String(s)), " ")
}

// AddressHash is the canonical SHA-256 over the JCS form of the normalized
// fields. It keys both the result cache and the addresses table.
func AddressHash(n NormalizedAddress) string {
	raw, err := json.Marshal(n)
	if err != nil {
		return ""
	}
	if canon, cerr := jcs.Transform(raw); cerr == nil {
		raw = canon
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// DetectPOBox reports whether either line matches a localized PO-box form.
func DetectPOBox(lines ...string) bool {
	for _, line := range lines {
		if line == "" {
			continue
		}
		for _, p := range poBoxPatterns {
			if p.MatchString(line) {
				return true
			}
		}
	}
	return false
}

// GeocodeQuery renders the normalized address as a single provider query.
func GeocodeQuery(n NormalizedAddress) string {
	parts := make([]string, 0, 5)
	for _, p := range []string{n.Line1, n.City, n.State, n.PostalCode, n.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// postalCityMatch checks the postal reference. Missing reference data does
// not flag the address but records the gap at low severity.
func (v *AddressValidator) postalCityMatch(ctx context.Context, n NormalizedAddress, codes *[]string) bool {
	if v.postal == nil || n.PostalCode == "" {
		*codes = append(*codes, reason.AddressPostalReferenceUnknown)
		return true
	}
	cities, err := v.postal.PostalCities(ctx, n.Country, n.PostalCode)
	if err != nil {
		v.logger.Warn("postal reference lookup failed", "error", err)
		*codes = append(*codes, reason.AddressPostalReferenceUnknown)
		return true
	}
	if len(cities) == 0 {
		*codes = append(*codes, reason.AddressPostalReferenceUnknown)
		return true
	}
	want := strings.ToLower(n.City)
	for _, c := range cities {
		if strings.ToLower(strings.TrimSpace(c)) == want {
			return true
		}
	}
	*codes = append(*codes, reason.AddressPostalCityMismatch)
	return false
}

// inBounds checks the point against the country bounding box. Unknown
// countries pass; the box table is reference data, not a gate.
func (v *AddressValidator) inBounds(ctx context.Context, country string, geo *Geo) bool {
	if v.bounds == nil {
		return true
	}
	box, err := v.bounds.CountryBounds(ctx, country)
	if err != nil {
		v.logger.Warn("country bounds lookup failed", "country", country, "error", err)
		return true
	}
	if box == nil {
		return true
	}
	return box.Contains(geo.Lat, geo.Lng)
}

func (v *AddressValidator) cachedResult(ctx context.Context, key string) *AddressResult {
	if v.cache == nil {
		return nil
	}
	data, hit, err := v.cache.Get(ctx, key)
	if err != nil || !hit {
		if err != nil {
			v.logger.Warn("address result cache read failed", "error", err)
		}
		return nil
	}
	var res AddressResult
	if err := json.Unmarshal(data, &res); err != nil {
		v.logger.Warn("address result cache entry corrupt", "error", err)
		return nil
	}
	return &res
}

func (v *AddressValidator) store(ctx context.Context, key string, res *AddressResult) {
	if v.cache == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := v.cache.Set(ctx, key, data, AddressResultTTL); err != nil {
		v.logger.Warn("address result cache write failed", "error", err)
	}
}
