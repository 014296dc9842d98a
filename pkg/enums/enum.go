// Package enums holds the closed string sets stored in the database and
// accepted on the wire. Values are case sensitive.
package enums

import (
	"fmt"
	"slices"
)

func oneOf[T ~string](value T, set []T) bool {
	return slices.Contains(set, value)
}

func parse[T ~string](kind, raw string, set []T) (T, error) {
	if value := T(raw); oneOf(value, set) {
		return value, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
