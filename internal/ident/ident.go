// Package ident checks whether a string is a well-formed catalog record id.
package ident

import (
	"strings"

	"github.com/google/uuid"
)

// Valid reports whether s is a canonical 8-4-4-4-12 hex UUID.
// uuid.Parse alone also accepts braced, urn-prefixed and hyphenless forms.
func Valid(s string) bool {
	if len(s) != 36 || strings.Count(s, "-") != 4 {
		return false
	}
	if s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// ValidPtr is Valid for optional ids; nil is never valid.
func ValidPtr(s *string) bool {
	return s != nil && Valid(*s)
}

// New returns a fresh random id.
func New() string {
	return uuid.NewString()
}
