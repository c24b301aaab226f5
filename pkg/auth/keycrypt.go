package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeyCrypt seals and opens API key material with AES-256-GCM. Ciphertexts
// are nonce-prefixed, matching the stored encrypted_key layout.
type KeyCrypt struct {
	aead cipher.AEAD
}

// NewKeyCrypt builds a KeyCrypt from the 32-byte ENCRYPTION_KEY.
func NewKeyCrypt(key []byte) (*KeyCrypt, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("auth: encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("auth: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("auth: init gcm: %w", err)
	}
	return &KeyCrypt{aead: aead}, nil
}

// Seal encrypts plaintext and prefixes the nonce.
func (k *KeyCrypt) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("auth: nonce: %w", err)
	}
	return k.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a nonce-prefixed ciphertext.
func (k *KeyCrypt) Open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < k.aead.NonceSize() {
		return nil, fmt.Errorf("auth: ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:k.aead.NonceSize()], ciphertext[k.aead.NonceSize():]
	plain, err := k.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: decrypt key: %w", err)
	}
	return plain, nil
}

// DerivePepper derives the application-wide PAT pepper from the master
// encryption key via HKDF-SHA256. When no encryption key is configured the
// fallback secret seeds the derivation instead, so PAT hashes stay stable
// within a deployment either way.
func DerivePepper(encryptionKey []byte, fallback string) []byte {
	ikm := encryptionKey
	if len(ikm) == 0 {
		sum := sha256.Sum256([]byte(fallback))
		ikm = sum[:]
	}
	r := hkdf.New(sha256.New, ikm, nil, []byte("orbicheck/pat-pepper/v1"))
	pepper := make([]byte, 32)
	if _, err := io.ReadFull(r, pepper); err != nil {
		// HKDF cannot fail for a 32-byte read; keep the signature simple.
		panic(fmt.Sprintf("auth: derive pepper: %v", err))
	}
	return pepper
}
