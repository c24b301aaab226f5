package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters for PAT secret hashing.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// PATPrefix tags personal access tokens so the bearer handler can route them.
const PATPrefix = "pat_"

// GeneratePAT mints a token of the form pat_<id>.<secret> and returns the
// token together with its lookup id and the peppered hash to store.
func GeneratePAT(pepper []byte) (token, tokenID, secretHash string, err error) {
	idRaw := make([]byte, 9)
	secretRaw := make([]byte, 24)
	if _, err = rand.Read(idRaw); err != nil {
		return "", "", "", fmt.Errorf("auth: generate pat id: %w", err)
	}
	if _, err = rand.Read(secretRaw); err != nil {
		return "", "", "", fmt.Errorf("auth: generate pat secret: %w", err)
	}
	tokenID = base64.RawURLEncoding.EncodeToString(idRaw)
	secret := base64.RawURLEncoding.EncodeToString(secretRaw)
	token = PATPrefix + tokenID + "." + secret

	secretHash, err = HashPATSecret(secret, pepper)
	if err != nil {
		return "", "", "", err
	}
	return token, tokenID, secretHash, nil
}

// SplitPAT breaks a presented pat_<id>.<secret> token into its parts.
func SplitPAT(token string) (tokenID, secret string, ok bool) {
	rest, found := strings.CutPrefix(token, PATPrefix)
	if !found {
		return "", "", false
	}
	tokenID, secret, found = strings.Cut(rest, ".")
	if !found || tokenID == "" || secret == "" {
		return "", "", false
	}
	return tokenID, secret, true
}

// HashPATSecret hashes a PAT secret with argon2id and the application pepper,
// producing a self-describing $argon2id$ encoded string.
func HashPATSecret(secret string, pepper []byte) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: pat salt: %w", err)
	}
	key := argon2.IDKey(peppered(secret, pepper), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPATSecret checks a presented secret against a stored encoded hash in
// constant time.
func VerifyPATSecret(secret string, pepper []byte, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var memory, timeCost uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &threads); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	got := argon2.IDKey(peppered(secret, pepper), salt, timeCost, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

func peppered(secret string, pepper []byte) []byte {
	buf := make([]byte, 0, len(secret)+len(pepper))
	buf = append(buf, secret...)
	buf = append(buf, pepper...)
	return buf
}
