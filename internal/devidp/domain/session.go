package domain

import "time"

// Session is one sign-in. Cookie sessions carry a TokenHash; OAuth sessions
// don't and are referenced by their ID from the "sid" claim and from their
// refresh tokens.
type Session struct {
	ID        string
	AccountID string
	TokenHash string // empty for OAuth sessions
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }
