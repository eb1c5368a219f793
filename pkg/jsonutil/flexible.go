// Package jsonutil reads loosely typed JSON values.
package jsonutil

import (
	"fmt"
	"math"
	"strings"
)

// ScalarString renders a decoded JSON scalar as text. Record fields such as
// registration numbers arrive as strings or numbers depending on the source,
// so integral numbers print without exponent or fraction. Strings are trimmed.
// Returns "" for null and for non-scalar values.
func ScalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return ""
	}
}
