package models

import "time"

// Principal is the authenticated user as seen by the client.
type Principal struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Expired reports whether the session token is past its expiry.
// A zero ExpiresAt never expires.
func (p Principal) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}
