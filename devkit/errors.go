package devkit

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Use errors.Is against these; the concrete types below carry
// the details.
var (
	// ErrConfiguration reports programmer misuse: a missing API key, or a
	// secret operation on a Resolver built without an encryption key.
	ErrConfiguration = errors.New("devkit: configuration error")

	// ErrUnsupported is returned by backends that cannot serve an operation.
	ErrUnsupported = fmt.Errorf("%w: operation not supported by backend", ErrConfiguration)

	// ErrAuthentication is returned when the service answers 401.
	ErrAuthentication = errors.New("devkit: authentication failed (invalid API key)")

	// ErrTimeout is returned when the transport deadline elapses.
	ErrTimeout = errors.New("devkit: request timeout")

	// ErrRemote matches every *RemoteError.
	ErrRemote = errors.New("devkit: remote error")

	// ErrNotFound matches every not-found condition, including a 404 answer.
	ErrNotFound = errors.New("devkit: not found")

	// ErrSecretNotFound is returned when the fetched secret map has no such key.
	ErrSecretNotFound = fmt.Errorf("%w: secret", ErrNotFound)

	// ErrConfigNotFound is returned by backends that can tell a missing
	// configuration apart from other failures.
	ErrConfigNotFound = fmt.Errorf("%w: configuration", ErrNotFound)

	// ErrDecryption matches every *DecryptionError and *SecretMapError.
	ErrDecryption = errors.New("devkit: decryption failed")

	// ErrConversion matches every *ConversionError.
	ErrConversion = errors.New("devkit: conversion failed")
)

const keyHint = "set the DEVKIT_ENCRYPTION_KEY environment variable or provide Options.EncryptionKey"

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// RemoteError is any non-success answer from the service other than 401,
// an unreadable body, or a network failure (StatusCode 0).
type RemoteError struct {
	Method     string
	Path       string
	StatusCode int
	RequestID  string
	Err        error
}

func (e *RemoteError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "devkit: %s %s", e.Method, e.Path)
	if e.StatusCode > 0 {
		fmt.Fprintf(&sb, ": HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&sb, " (request id %s)", e.RequestID)
	}
	return sb.String()
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote || (target == ErrNotFound && e.StatusCode == 404)
}

// DecryptionError describes a payload that could not be decrypted. It only
// carries the shape of the input, never key material or plaintext.
type DecryptionError struct {
	EncodedLen int
	DecodedLen int // -1 when the Base64 itself was malformed
	Reason     string
	Err        error
}

func (e *DecryptionError) Error() string {
	shape := fmt.Sprintf("encoded length %d", e.EncodedLen)
	if e.DecodedLen >= 0 {
		shape += fmt.Sprintf(", decoded length %d", e.DecodedLen)
	}
	return fmt.Sprintf("devkit: decryption failed (%s): %s", shape, e.Reason)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

func (e *DecryptionError) Is(target error) bool { return target == ErrDecryption }

// ConversionError reports a configuration value that does not parse as the
// requested type. Configuration values are not secret material, so the raw
// value is kept for diagnosis.
type ConversionError struct {
	Value  string
	Target ValueType
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("devkit: configuration value %q cannot be parsed as %s", e.Value, e.Target)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

// SecretMapError is raised by GetSecretMap after every entry was attempted.
// FailedKeys is sorted; Errs holds one *DecryptionError per failed key in
// the same order.
type SecretMapError struct {
	FailedKeys []string
	Total      int
	Errs       []error
}

func (e *SecretMapError) Error() string {
	return fmt.Sprintf("devkit: failed to decrypt %d of %d secret(s): %s; verify DEVKIT_ENCRYPTION_KEY is correct",
		len(e.FailedKeys), e.Total, strings.Join(e.FailedKeys, ", "))
}

func (e *SecretMapError) Unwrap() []error { return e.Errs }

func (e *SecretMapError) Is(target error) bool { return target == ErrDecryption }
