package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/grasp-labs/ds-devkit-go-sdk/devkit"
)

// RunFlagEval evaluates a feature flag. attrs is an optional JSON object of
// targeting attributes.
func RunFlagEval(ctx context.Context, r *devkit.Resolver, out io.Writer, flagKey, userID, attrs, format string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	attributes := map[string]any{}
	if attrs != "" {
		if err := json.Unmarshal([]byte(attrs), &attributes); err != nil {
			return fmt.Errorf("invalid --attributes JSON: %w", err)
		}
	}
	ev, err := r.EvaluateFeatureFlag(ctx, flagKey, userID, attributes)
	if err != nil {
		return err
	}
	if format == FormatJSON {
		return writeJSON(out, ev)
	}
	_, err = fmt.Fprintf(out, "%s for %s: enabled=%t variant=%q reason=%s\n", flagKey, userID, ev.Enabled, ev.Variant(), ev.Reason)
	return err
}
