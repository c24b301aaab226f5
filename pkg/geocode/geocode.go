// Package geocode resolves postal addresses to coordinates through a
// Nominatim-compatible HTTP provider.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Timeout bounds a geocoding call. Coordinates are advisory; a slow
// provider must not stall address validation.
const Timeout = 5 * time.Second

// Point is a geocoding hit with the provider's ranking confidence.
type Point struct {
	Lat        float64
	Lng        float64
	Confidence float64
}

// Geocoder resolves a free-form address query. A nil *Point with nil error
// means the provider found nothing.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*Point, error)
}

// HTTPGeocoder calls a Nominatim-compatible search endpoint.
type HTTPGeocoder struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New builds a geocoder for the given search URL. apiKey may be empty for
// keyless providers.
func New(baseURL, apiKey string) *HTTPGeocoder {
	return &HTTPGeocoder{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: Timeout},
	}
}

// nominatimHit is the subset of the provider response we read. Nominatim
// serializes coordinates as strings.
type nominatimHit struct {
	Lat        string  `json:"lat"`
	Lon        string  `json:"lon"`
	Importance float64 `json:"importance"`
}

func (g *HTTPGeocoder) Geocode(ctx context.Context, query string) (*Point, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	if g.apiKey != "" {
		q.Set("key", g.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("geocode: build request: %w", err)
	}
	req.Header.Set("User-Agent", "orbitcheck/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode: provider returned %d", resp.StatusCode)
	}

	var hits []nominatimHit
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&hits); err != nil {
		return nil, fmt.Errorf("geocode: decode response: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode: bad latitude %q: %w", hits[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode: bad longitude %q: %w", hits[0].Lon, err)
	}
	return &Point{Lat: lat, Lng: lng, Confidence: hits[0].Importance}, nil
}
