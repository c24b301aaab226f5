// Package auth resolves the three credential classes (session, bearer API
// key or PAT, HMAC-signed request) into a request-scoped Principal, and
// carries the per-class route protection plus the tenant rate limit.
package auth

import "time"

// Method identifies how a request authenticated.
type Method string

const (
	MethodSession Method = "session"
	MethodAPIKey  Method = "api_key"
	MethodPAT     Method = "pat"
	MethodHMAC    Method = "hmac"
)

// Principal is the identity attached to an authenticated request.
type Principal struct {
	ProjectID string
	UserID    string
	Scopes    []string
	Method    Method
}

// HasScope reports whether the principal may use the named scope.
// Credentials without explicit scopes are project-wide.
func (p *Principal) HasScope(scope string) bool {
	if len(p.Scopes) == 0 {
		return true
	}
	for _, s := range p.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}

// APIKeyRecord is the api_keys row as needed for verification. The full key
// is never stored in the clear: Hash authenticates bearer use, EncryptedKey
// is retained only so HMAC signatures can be recomputed.
type APIKeyRecord struct {
	ID           string
	ProjectID    string
	Prefix       string
	Hash         string
	EncryptedKey []byte
	Status       string
	CreatedAt    time.Time
}

// PATRecord is the personal_access_tokens row as needed for verification.
type PATRecord struct {
	ID          string
	UserID      string
	ProjectID   string
	SecretHash  string
	Scopes      []string
	IPAllowlist []string
	Status      string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

const (
	// CredentialActive is the only status that authenticates.
	CredentialActive = "active"
	// CredentialRevoked marks a key that must no longer authenticate.
	CredentialRevoked = "revoked"
)
