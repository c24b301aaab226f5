package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// APIKeyPrefixLen is the length of the indexed key prefix.
const APIKeyPrefixLen = 6

// apiKeyTag leads every project API key.
const apiKeyTag = "ok_"

// GenerateAPIKey mints an opaque bearer key of the form ok_<opaque> and
// returns the key, its 6-character index prefix, and the SHA-256 hash of the
// full key for storage.
func GenerateAPIKey() (key, prefix, hash string, err error) {
	raw := make([]byte, 24)
	if _, err = rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("auth: generate api key: %w", err)
	}
	opaque := base64.RawURLEncoding.EncodeToString(raw)
	key = apiKeyTag + opaque
	prefix = opaque[:APIKeyPrefixLen]
	hash = HashAPIKey(key)
	return key, prefix, hash, nil
}

// APIKeyIndexPrefix extracts the lookup prefix from a presented bearer key.
func APIKeyIndexPrefix(key string) (string, bool) {
	opaque, found := strings.CutPrefix(key, apiKeyTag)
	if !found || len(opaque) < APIKeyPrefixLen {
		return "", false
	}
	return opaque[:APIKeyPrefixLen], true
}

// HashAPIKey hashes a full key for storage and comparison.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// VerifyAPIKey compares a presented key against a record in constant time.
// Only active records authenticate.
func VerifyAPIKey(presented string, rec *APIKeyRecord) bool {
	if rec == nil || rec.Status != CredentialActive {
		return false
	}
	got := HashAPIKey(presented)
	return subtle.ConstantTimeCompare([]byte(got), []byte(rec.Hash)) == 1
}
