package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/grasp-labs/ds-devkit-go-sdk/devkit"
)

// RunConfigGet prints one configuration value, converted to typ.
func RunConfigGet(ctx context.Context, r *devkit.Resolver, out io.Writer, env, key, typ, format string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	v, err := r.GetConfigAs(ctx, env, key, devkit.ValueType(typ))
	if err != nil {
		return err
	}
	if format == FormatJSON {
		return writeJSON(out, map[string]any{"environment": env, "key": key, "value": v})
	}
	if devkit.ValueType(typ) == devkit.TypeJSON {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		v = string(b)
	}
	_, err = fmt.Fprintln(out, v)
	return err
}

// RunConfigList prints every configuration of env.
func RunConfigList(ctx context.Context, r *devkit.Resolver, out io.Writer, env, format string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	m, err := r.GetConfigMap(ctx, env)
	if err != nil {
		return err
	}
	return writeMap(out, format, m)
}
