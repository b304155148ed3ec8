// Package ident generates opaque identifiers for bullet items.
package ident

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a random identifier as 32 lowercase hex digits.
func New() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
