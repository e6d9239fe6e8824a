package fakes

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"testing"
)

// -------- tiny utils --------
func b64e(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// NewKey returns a random 32-byte key and its Base64 form.
func NewKey(t *testing.T) ([]byte, string) {
	t.Helper()
	k := make([]byte, 32)
	if _, err := rand.Read(k); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return k, b64e(k)
}

// Seal encrypts plaintext the way the DevKit service stores values:
// Base64(iv || ciphertext || tag), AES-256-GCM, no AAD.
func Seal(key []byte, plaintext string) (string, error) {
	if len(key) != 32 {
		return "", fmt.Errorf("key must be 32 bytes (AES-256)")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	return b64e(gcm.Seal(iv, iv, []byte(plaintext), nil)), nil
}

// MustSeal is Seal for tests.
func MustSeal(t *testing.T, key []byte, plaintext string) string {
	t.Helper()
	s, err := Seal(key, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	return s
}
