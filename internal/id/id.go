// Package id generates identifiers for database rows.
package id

import "github.com/google/uuid"

// NewUUIDv7 returns a time-ordered UUID string. v7 keeps index pages warm on
// append-heavy tables, which matters for the bulk insert paths.
func NewUUIDv7() string {
	u, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the entropy source does; fall back to v4
		return uuid.NewString()
	}
	return u.String()
}
