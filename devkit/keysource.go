package devkit

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/allisson/go-env"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// EnvEncryptionKey is the environment variable consulted when no key is
// configured explicitly.
const EnvEncryptionKey = "DEVKIT_ENCRYPTION_KEY"

// KeySource yields a Base64-encoded 256-bit encryption key. A Resolver asks
// its source exactly once, at construction.
type KeySource interface {
	EncryptionKey(ctx context.Context) (string, error)
}

// StaticKey is a KeySource that returns itself.
type StaticKey string

func (k StaticKey) EncryptionKey(context.Context) (string, error) { return string(k), nil }

// EnvKey reads the named environment variable. An unset variable yields ""
// (no key), not an error.
type EnvKey string

func (k EnvKey) EncryptionKey(context.Context) (string, error) {
	return env.GetString(string(k), ""), nil
}

type KMSAPI interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSKeySource unwraps a KMS-encrypted data key. WrappedKey is the Base64
// CiphertextBlob; EncryptionContext must match what was used to wrap it.
type KMSKeySource struct {
	KMS               KMSAPI
	WrappedKey        string
	KeyID             string
	EncryptionContext map[string]string
}

func (s *KMSKeySource) EncryptionKey(ctx context.Context) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(s.WrappedKey)
	if err != nil {
		return "", fmt.Errorf("wrapped key base64: %w", err)
	}
	in := &kms.DecryptInput{
		CiphertextBlob:    blob,
		EncryptionContext: s.EncryptionContext,
	}
	if s.KeyID != "" {
		in.KeyId = &s.KeyID
	}
	out, err := s.KMS.Decrypt(ctx, in)
	if err != nil {
		return "", fmt.Errorf("KMS Decrypt: %w", err)
	}
	defer zero(out.Plaintext)
	return base64.StdEncoding.EncodeToString(out.Plaintext), nil
}

type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMKeySource reads the key from a SecureString parameter holding the
// Base64 key.
type SSMKeySource struct {
	SSM  SSMAPI
	Name string
}

func (s *SSMKeySource) EncryptionKey(ctx context.Context) (string, error) {
	t := true
	out, err := s.SSM.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &s.Name,
		WithDecryption: &t,
	})
	if err != nil {
		return "", fmt.Errorf("SSM GetParameter: %w", err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("SSM parameter %q has no value", s.Name)
	}
	return *out.Parameter.Value, nil
}

// resolveEncryptionKey applies the precedence explicit > source > env.
func resolveEncryptionKey(ctx context.Context, explicit string, src KeySource) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	if src != nil {
		k, err := src.EncryptionKey(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: resolve encryption key: %w", ErrConfiguration, err)
		}
		if strings.TrimSpace(k) != "" {
			return k, nil
		}
	}
	return EnvKey(EnvEncryptionKey).EncryptionKey(ctx)
}
