package commands

import (
	"fmt"
	"io"

	"github.com/grasp-labs/ds-devkit-go-sdk/devkit"
)

// RunKeygen prints a new Base64 256-bit key.
func RunKeygen(out io.Writer) error {
	k, err := devkit.GenerateKey()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, k)
	return err
}

// RunKeyHash prints the fingerprint of the configured key, for comparing
// with the one the service reports.
func RunKeyHash(r *devkit.Resolver, out io.Writer) error {
	h, ok := r.EncryptionKeyHash()
	if !ok {
		return fmt.Errorf("%w: no encryption key configured", devkit.ErrConfiguration)
	}
	_, err := fmt.Fprintln(out, h)
	return err
}

// RunEncrypt prints plaintext encrypted under the configured key.
func RunEncrypt(r *devkit.Resolver, out io.Writer, plaintext string) error {
	enc, err := r.Encrypt(plaintext)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, enc)
	return err
}
