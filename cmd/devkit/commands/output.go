package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

func checkFormat(format string) error {
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("unknown output format %q (want text or json)", format)
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeMap prints key=value lines in key order, or a JSON object.
func writeMap(out io.Writer, format string, m map[string]string) error {
	if format == FormatJSON {
		return writeJSON(out, m)
	}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if _, err := fmt.Fprintf(out, "%s=%s\n", k, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// mask keeps the first four characters of s.
func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", min(len(s)-4, 12))
}
