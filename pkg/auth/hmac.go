package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/cache"
)

// HMACScheme is the Authorization scheme for signed requests.
const HMACScheme = "HMAC"

// HMACSkew is the accepted clock skew around the signed timestamp.
const HMACSkew = 5 * time.Minute

// nonceTTL keeps seen nonces long enough to cover the skew window twice.
const nonceTTL = 10 * time.Minute

// HMACParams are the components of a signed Authorization header.
type HMACParams struct {
	KeyID     string
	Timestamp int64
	Nonce     string
	Signature string
}

// ParseHMACHeader parses `HMAC keyId=…&ts=…&nonce=…&signature=…`.
func ParseHMACHeader(header string) (*HMACParams, error) {
	rest, found := strings.CutPrefix(header, HMACScheme+" ")
	if !found {
		return nil, fmt.Errorf("auth: not an HMAC authorization header")
	}
	values, err := url.ParseQuery(rest)
	if err != nil {
		return nil, fmt.Errorf("auth: malformed HMAC parameters: %w", err)
	}
	p := &HMACParams{
		KeyID:     values.Get("keyId"),
		Nonce:     values.Get("nonce"),
		Signature: values.Get("signature"),
	}
	if p.KeyID == "" || p.Nonce == "" || p.Signature == "" || values.Get("ts") == "" {
		return nil, fmt.Errorf("auth: HMAC header missing keyId, ts, nonce, or signature")
	}
	p.Timestamp, err = strconv.ParseInt(values.Get("ts"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("auth: HMAC ts is not a unix timestamp: %w", err)
	}
	return p, nil
}

// SignRequest computes the signature for a request. The signed message is
// METHOD (uppercased) + request URI (path with query, as sent) + ts + nonce.
// Shared with clients and with the verifier below.
func SignRequest(fullKey []byte, method, requestURI string, ts int64, nonce string) string {
	mac := hmac.New(sha256.New, fullKey)
	mac.Write([]byte(strings.ToUpper(method)))
	mac.Write([]byte(requestURI))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

// HMACVerifier checks signed requests against stored API keys.
type HMACVerifier struct {
	crypt  *KeyCrypt
	nonces cache.Cache
}

// NewHMACVerifier builds a verifier. crypt recovers full keys from their
// encrypted form; nonces guards against replay within the skew window.
func NewHMACVerifier(crypt *KeyCrypt, nonces cache.Cache) *HMACVerifier {
	return &HMACVerifier{crypt: crypt, nonces: nonces}
}

// Verify authenticates a signed request against the key record resolved from
// params.KeyID. The comparison is timing-safe.
func (v *HMACVerifier) Verify(ctx context.Context, r *http.Request, params *HMACParams, rec *APIKeyRecord) error {
	if v == nil || v.crypt == nil {
		return fmt.Errorf("auth: HMAC verification not configured")
	}
	if rec == nil || rec.Status != CredentialActive {
		return fmt.Errorf("auth: unknown or revoked key")
	}

	now := time.Now()
	issued := time.Unix(params.Timestamp, 0)
	if issued.Before(now.Add(-HMACSkew)) || issued.After(now.Add(HMACSkew)) {
		return fmt.Errorf("auth: HMAC timestamp outside allowed window")
	}

	if v.nonces != nil {
		key := fmt.Sprintf("hmac:nonce:%s:%s", params.KeyID, params.Nonce)
		fresh, err := v.nonces.Add(ctx, key, []byte("1"), nonceTTL)
		if err != nil {
			return fmt.Errorf("auth: nonce check: %w", err)
		}
		if !fresh {
			return fmt.Errorf("auth: HMAC nonce replayed")
		}
	}

	fullKey, err := v.crypt.Open(rec.EncryptedKey)
	if err != nil {
		return fmt.Errorf("auth: recover key: %w", err)
	}
	want := SignRequest(fullKey, r.Method, r.URL.RequestURI(), params.Timestamp, params.Nonce)
	if !hmac.Equal([]byte(want), []byte(params.Signature)) {
		return fmt.Errorf("auth: HMAC signature mismatch")
	}
	return nil
}
