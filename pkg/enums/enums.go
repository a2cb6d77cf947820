// Package enums holds the string-backed value sets stored in the database
// and carried on the wire.
package enums

import (
	"fmt"
	"slices"
)

func parseOneOf[T ~string](kind string, valid []T, value string) (T, error) {
	if v := T(value); slices.Contains(valid, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
