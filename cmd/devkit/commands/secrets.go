package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/grasp-labs/ds-devkit-go-sdk/devkit"
)

const hidden = "********"

// RunSecretGet prints one secret. The value is hidden unless reveal is set.
func RunSecretGet(ctx context.Context, r *devkit.Resolver, out io.Writer, app, env, key string, reveal bool, format string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	v, err := r.GetSecret(ctx, app, env, key)
	if err != nil {
		return err
	}
	if !reveal {
		v = hidden
	}
	if format == FormatJSON {
		return writeJSON(out, map[string]string{"application": app, "environment": env, "key": key, "value": v})
	}
	_, err = fmt.Fprintln(out, v)
	return err
}

// RunSecretList prints every secret of app in env, hidden unless reveal is
// set. A partial decryption failure prints nothing and names the failed keys.
func RunSecretList(ctx context.Context, r *devkit.Resolver, out io.Writer, app, env string, reveal bool, format string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	m, err := r.GetSecretMap(ctx, app, env)
	if err != nil {
		return err
	}
	if !reveal {
		for k := range m {
			m[k] = hidden
		}
	}
	return writeMap(out, format, m)
}
