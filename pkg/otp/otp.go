// Package otp drives phone possession checks through a Verify-style
// provider API.
package otp

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

// Timeout bounds each provider call.
const Timeout = 10 * time.Second

// Provider starts and checks one-time-code verifications. Start returns a
// provider verification id; Check reports whether the submitted code was
// accepted.
type Provider interface {
	Start(ctx context.Context, e164 string) (string, error)
	Check(ctx context.Context, verificationID, code string) (bool, error)
}

// HTTPProvider talks to a Twilio-Verify-shaped REST API: form-encoded
// POSTs under a service base URL with basic auth.
type HTTPProvider struct {
	baseURL    string
	accountSID string
	authToken  string
	client     *http.Client
}

// New builds a provider client. baseURL is the verification service root,
// e.g. https://verify.example.com/v2/Services/VAxxx.
func New(baseURL, accountSID, authToken string) *HTTPProvider {
	return &HTTPProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
		client:     &http.Client{Timeout: Timeout},
	}
}

type verificationResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

func (p *HTTPProvider) Start(ctx context.Context, e164 string) (string, error) {
	form := url.Values{}
	form.Set("To", e164)
	form.Set("Channel", "sms")

	out, err := p.post(ctx, "/Verifications", form)
	if err != nil {
		return "", err
	}
	if out.SID == "" {
		return "", fmt.Errorf("otp: provider returned no verification id")
	}
	return out.SID, nil
}

func (p *HTTPProvider) Check(ctx context.Context, verificationID, code string) (bool, error) {
	form := url.Values{}
	form.Set("VerificationSid", verificationID)
	form.Set("Code", code)

	out, err := p.post(ctx, "/VerificationCheck", form)
	if err != nil {
		return false, err
	}
	return out.Status == "approved", nil
}

func (p *HTTPProvider) post(ctx context.Context, path string, form url.Values) (*verificationResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("otp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.accountSID, p.authToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("otp: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("otp: provider returned %d", resp.StatusCode)
	}

	var out verificationResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("otp: decode response: %w", err)
	}
	return &out, nil
}
