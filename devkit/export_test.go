package devkit

import (
	"sync/atomic"
	"time"
)

// CryptoSpy counts calls into a Resolver's cipher.
type CryptoSpy struct {
	inner    sealer
	Decrypts atomic.Int64
	Encrypts atomic.Int64
}

func (s *CryptoSpy) Decrypt(encoded string) (string, error) {
	s.Decrypts.Add(1)
	return s.inner.Decrypt(encoded)
}

func (s *CryptoSpy) Encrypt(plaintext string) (string, error) {
	s.Encrypts.Add(1)
	return s.inner.Encrypt(plaintext)
}

func (s *CryptoSpy) KeyFingerprint() string { return s.inner.KeyFingerprint() }

// SpyCrypto wraps r's cipher. It returns nil when r has no key.
func SpyCrypto(r *Resolver) *CryptoSpy {
	if r.box == nil {
		return nil
	}
	s := &CryptoSpy{inner: r.box}
	r.box = s
	return s
}

// WithTestClock sets the cache clock.
func WithTestClock(o Options, now func() time.Time) Options {
	o.now = now
	return o
}
