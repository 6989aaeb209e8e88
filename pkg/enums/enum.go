// Package enums holds the string enums shared by the database, the wire
// payloads and the outbox events. Each type lists its valid values once and
// validates through the helpers below.
package enums

import (
	"fmt"
	"slices"
)

func oneOf[T ~string](v T, valid []T) bool {
	return slices.Contains(valid, v)
}

func parse[T ~string](kind, value string, valid []T) (T, error) {
	if v := T(value); oneOf(v, valid) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
