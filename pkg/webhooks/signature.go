// Package webhooks delivers event-log entries to tenant HTTP endpoints:
// fanout enqueues one durable outbox row per matching subscription, and
// the dispatcher drains the outbox with signed POSTs and bounded
// retries.
package webhooks

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// SignatureHeader carries the body signature on every delivery.
const SignatureHeader = "X-OrbiCheck-Signature"

// secretTag leads every generated subscription secret.
const secretTag = "whsec_"

// GenerateSecret mints a subscription signing secret of the form
// whsec_<opaque>. Used when a subscription is created without one.
func GenerateSecret() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("webhooks: generate secret: %w", err)
	}
	return secretTag + base64.RawURLEncoding.EncodeToString(raw), nil
}

// Sign computes the delivery signature over the raw body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature header in constant time.
// Receivers use it to authenticate deliveries.
func VerifySignature(secret string, body []byte, header string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(header))
}
