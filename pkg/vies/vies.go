// Package vies checks EU VAT numbers against the VIES REST service.
package vies

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Timeout bounds a registry lookup. VIES is slow and flaky; lookups are
// advisory and the caller degrades to checksum-only validation on error.
const Timeout = 10 * time.Second

// DefaultBaseURL is the public VIES REST endpoint.
const DefaultBaseURL = "https://ec.europa.eu/taxation_customs/vies/rest-api"

// Result is the registry's answer for one VAT number.
type Result struct {
	Valid   bool
	Name    string
	Address string
}

// Registry looks up a VAT number in a member-state registry.
type Registry interface {
	Lookup(ctx context.Context, countryCode, vatNumber string) (*Result, error)
}

// Client calls the VIES REST API.
type Client struct {
	baseURL string
	client  *http.Client
}

// New builds a client. An empty baseURL selects the public endpoint.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: Timeout},
	}
}

type viesResponse struct {
	IsValid bool   `json:"isValid"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Lookup queries /ms/{country}/vat/{number}. countryCode is the two-letter
// member-state code and vatNumber the national part without the prefix.
func (c *Client) Lookup(ctx context.Context, countryCode, vatNumber string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/ms/%s/vat/%s",
		c.baseURL, url.PathEscape(strings.ToUpper(countryCode)), url.PathEscape(vatNumber))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("vies: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vies: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vies: registry returned %d", resp.StatusCode)
	}

	var out viesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("vies: decode response: %w", err)
	}
	return &Result{Valid: out.IsValid, Name: out.Name, Address: out.Address}, nil
}
