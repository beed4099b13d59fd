// Package id provides identifiers for catalog items, movements and subscriptions.
package id

import (
	"github.com/google/uuid"
)

// ID is a UUID. Values produced by New are version 7, so they sort by creation time.
type ID = uuid.UUID

// New generates a new time-ordered ID.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
