package devkit

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// IVSize is the GCM nonce length in bytes.
	IVSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
)

// CipherBox holds one AES-256-GCM key and decrypts the payloads the DevKit
// service stores: Base64(IV(12) || ciphertext || tag(16)), no associated
// data. It is immutable after construction and safe for concurrent use.
//
// The raw key is not retained; only the AEAD instance and the key's SHA-256
// fingerprint are.
type CipherBox struct {
	aead        cipher.AEAD
	fingerprint string
}

// NewCipherBox builds a CipherBox from a Base64-encoded 256-bit key.
func NewCipherBox(encodedKey string) (*CipherBox, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encodedKey))
	if err != nil {
		return nil, configErrorf("encryption key is not valid Base64 (length %d)", len(encodedKey))
	}
	defer zero(raw)
	return newCipherBox(raw)
}

// NewCipherBoxFromKey builds a CipherBox from raw key bytes. The caller
// keeps ownership of key.
func NewCipherBoxFromKey(key []byte) (*CipherBox, error) {
	return newCipherBox(key)
}

func newCipherBox(key []byte) (*CipherBox, error) {
	if len(key) != KeySize {
		return nil, configErrorf("encryption key must be a 256-bit (%d byte) key, got %d bytes", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	g, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	sum := sha256.Sum256(key)
	return &CipherBox{
		aead:        g,
		fingerprint: base64.StdEncoding.EncodeToString(sum[:]),
	}, nil
}

// Decrypt decodes and authenticates an encrypted payload. Any failure,
// including a wrong key or a single flipped byte, yields a *DecryptionError;
// no partial plaintext is ever returned.
func (b *CipherBox) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &DecryptionError{EncodedLen: len(encoded), DecodedLen: -1, Reason: "malformed Base64", Err: err}
	}
	if len(raw) < IVSize+TagSize {
		return "", &DecryptionError{
			EncodedLen: len(encoded),
			DecodedLen: len(raw),
			Reason:     fmt.Sprintf("payload shorter than IV+tag minimum of %d bytes", IVSize+TagSize),
		}
	}
	iv, ct := raw[:IVSize], raw[IVSize:]
	pt, err := b.aead.Open(nil, iv, ct, nil)
	if err != nil {
		return "", &DecryptionError{
			EncodedLen: len(encoded),
			DecodedLen: len(raw),
			Reason:     "authentication tag mismatch (wrong key or tampered ciphertext)",
			Err:        err,
		}
	}
	return string(pt), nil
}

// Encrypt seals plaintext under a fresh random IV and returns
// Base64(IV || ciphertext || tag).
func (b *CipherBox) Encrypt(plaintext string) (string, error) {
	out := make([]byte, IVSize, IVSize+len(plaintext)+TagSize)
	if _, err := rand.Read(out); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	out = b.aead.Seal(out, out[:IVSize], []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// KeyFingerprint returns Base64(SHA-256(key)). Compare it with the
// fingerprint the service reports to check both sides use the same key.
func (b *CipherBox) KeyFingerprint() string { return b.fingerprint }

// LooksEncrypted reports whether value has the shape of an encrypted
// payload: non-empty, strict Base64 and at least IV+tag bytes once
// decoded. Plaintext that happens to be long Base64 is misclassified; the
// service does not tag encrypted values, so this cannot be ruled out here.
func LooksEncrypted(value string) bool {
	if value == "" {
		return false
	}
	// 28 decoded bytes need at least 40 Base64 characters.
	if base64.StdEncoding.DecodedLen(len(value)) < IVSize+TagSize {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return false
	}
	return len(raw) >= IVSize+TagSize
}

// GenerateKey returns a new random 256-bit key, Base64-encoded, for
// provisioning flows.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	defer zero(key)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
