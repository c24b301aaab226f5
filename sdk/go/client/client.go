// Package client provides a typed Go client for the OrbiCheck API.
// Zero external dependencies: net/http and encoding/json only.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// APIError is returned when the API responds with a non-2xx status.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("orbicheck api %d: %s (%s)", e.Status, e.Message, e.Code)
}

// Client is a typed client for the OrbiCheck API.
//
// Runtime endpoints accept a project API key as the token; the webhook
// endpoints require a personal access token.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// New creates a new Client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Option configures the client.
type Option func(*Client)

// WithToken sets the bearer token (API key or personal access token).
func WithToken(token string) Option {
	return func(c *Client) { c.Token = token }
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTPClient.Timeout = d }
}

func (c *Client) do(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var envelope errorEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Err.Code != "" {
			return &APIError{
				Status:    resp.StatusCode,
				Code:      envelope.Err.Code,
				Message:   envelope.Err.Message,
				RequestID: envelope.RequestID,
			}
		}
		return &APIError{Status: resp.StatusCode, Code: "internal_error", Message: "unknown error"}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// ValidateEmail calls POST /v1/validate/email.
func (c *Client) ValidateEmail(email string) (*EmailValidation, error) {
	var out EmailValidation
	err := c.do("POST", "/v1/validate/email", map[string]string{"email": email}, &out)
	return &out, err
}

// ValidatePhone calls POST /v1/validate/phone.
func (c *Client) ValidatePhone(req PhoneRequest) (*PhoneValidation, error) {
	var out PhoneValidation
	err := c.do("POST", "/v1/validate/phone", req, &out)
	return &out, err
}

// VerifyPhoneCode calls POST /v1/verify/phone with the verification id
// returned by ValidatePhone and the code the user received.
func (c *Client) VerifyPhoneCode(verificationID, code string) (*CodeVerification, error) {
	var out CodeVerification
	body := map[string]string{"verification_sid": verificationID, "code": code}
	err := c.do("POST", "/v1/verify/phone", body, &out)
	return &out, err
}

// ValidateAddress calls POST /v1/validate/address.
func (c *Client) ValidateAddress(addr Address) (*AddressValidation, error) {
	var out AddressValidation
	err := c.do("POST", "/v1/validate/address", addr, &out)
	return &out, err
}

// NormalizeAddress calls POST /v1/normalize/address.
func (c *Client) NormalizeAddress(addr Address) (*AddressNormalization, error) {
	var out AddressNormalization
	err := c.do("POST", "/v1/normalize/address", addr, &out)
	return &out, err
}

// ValidateTaxID calls POST /v1/validate/tax-id.
func (c *Client) ValidateTaxID(req TaxIDRequest) (*TaxIDValidation, error) {
	var out TaxIDValidation
	err := c.do("POST", "/v1/validate/tax-id", req, &out)
	return &out, err
}

// ValidateName calls POST /v1/validate/name.
func (c *Client) ValidateName(firstName, lastName string) (*NameValidation, error) {
	var out NameValidation
	body := map[string]string{"first_name": firstName, "last_name": lastName}
	err := c.do("POST", "/v1/validate/name", body, &out)
	return &out, err
}

// ValidateBatch calls POST /v1/validate/batch.
func (c *Client) ValidateBatch(items []BatchItem) (*BatchValidation, error) {
	var out BatchValidation
	err := c.do("POST", "/v1/validate/batch", map[string]any{"items": items}, &out)
	return &out, err
}

// DedupeCustomer calls POST /v1/dedupe/customer.
func (c *Client) DedupeCustomer(q CustomerQuery) (*DedupeResult, error) {
	var out DedupeResult
	err := c.do("POST", "/v1/dedupe/customer", q, &out)
	return &out, err
}

// DedupeAddress calls POST /v1/dedupe/address.
func (c *Client) DedupeAddress(addr Address) (*DedupeResult, error) {
	var out DedupeResult
	err := c.do("POST", "/v1/dedupe/address", addr, &out)
	return &out, err
}

// Merge calls POST /v1/dedupe/merge.
func (c *Client) Merge(req MergeRequest) (*MergeOutcome, error) {
	var out MergeOutcome
	err := c.do("POST", "/v1/dedupe/merge", req, &out)
	return &out, err
}

// EvaluateOrder calls POST /v1/orders/evaluate.
func (c *Client) EvaluateOrder(req OrderRequest) (*OrderEvaluation, error) {
	var out OrderEvaluation
	err := c.do("POST", "/v1/orders/evaluate", req, &out)
	return &out, err
}

// ListRules calls GET /v1/rules.
func (c *Client) ListRules() (*RuleList, error) {
	var out RuleList
	err := c.do("GET", "/v1/rules", nil, &out)
	return &out, err
}

// RuleCatalog calls GET /v1/rules/catalog.
func (c *Client) RuleCatalog() (*RuleCatalog, error) {
	var out RuleCatalog
	err := c.do("GET", "/v1/rules/catalog", nil, &out)
	return &out, err
}

// ErrorCodes calls GET /v1/rules/catalog/error-codes.
func (c *Client) ErrorCodes() (*ErrorCodeIndex, error) {
	var out ErrorCodeIndex
	err := c.do("GET", "/v1/rules/catalog/error-codes", nil, &out)
	return &out, err
}

// ListLogs calls GET /v1/data/logs. Pass limit 0 for the server default
// and an empty cursor for the first page.
func (c *Client) ListLogs(limit int, cursor string) (*LogPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	path := "/v1/data/logs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out LogPage
	err := c.do("GET", path, nil, &out)
	return &out, err
}

// DeleteLog calls DELETE /v1/data/logs/{id}.
func (c *Client) DeleteLog(id string) (*Deletion, error) {
	var out Deletion
	err := c.do("DELETE", "/v1/data/logs/"+url.PathEscape(id), nil, &out)
	return &out, err
}

// Usage calls GET /v1/data/usage. Pass days 0 for the server default.
func (c *Client) Usage(days int) (*UsageReport, error) {
	path := "/v1/data/usage"
	if days > 0 {
		path += "?days=" + strconv.Itoa(days)
	}
	var out UsageReport
	err := c.do("GET", path, nil, &out)
	return &out, err
}

// CreateWebhook calls POST /v1/webhooks. When no secret is supplied the
// response carries a generated one; it is not retrievable afterwards.
func (c *Client) CreateWebhook(req WebhookRequest) (*Webhook, error) {
	var out Webhook
	err := c.do("POST", "/v1/webhooks", req, &out)
	return &out, err
}

// ListWebhooks calls GET /v1/webhooks.
func (c *Client) ListWebhooks() (*WebhookList, error) {
	var out WebhookList
	err := c.do("GET", "/v1/webhooks", nil, &out)
	return &out, err
}

// DeleteWebhook calls DELETE /v1/webhooks/{id}.
func (c *Client) DeleteWebhook(id string) (*Deletion, error) {
	var out Deletion
	err := c.do("DELETE", "/v1/webhooks/"+url.PathEscape(id), nil, &out)
	return &out, err
}

// Health calls GET /health.
func (c *Client) Health() (*Health, error) {
	var out Health
	err := c.do("GET", "/health", nil, &out)
	return &out, err
}
