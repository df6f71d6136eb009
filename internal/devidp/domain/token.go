package domain

import "time"

// TokenPair is what the token endpoint hands back: a short-lived access
// token (JWT) and an opaque refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// RefreshToken is the stored refresh token record. The opaque value is never
// persisted, only its fingerprint.
type RefreshToken struct {
	ID        string
	AccountID string
	SessionID string
	TokenHash string // base64url SHA-256
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Purposes for action tokens.
const (
	PurposeVerifyEmail   = "verify_email"
	PurposePasswordReset = "password_reset"
)

// ActionToken is a single-use emailed token ("sptoken") for email
// verification or password reset.
type ActionToken struct {
	ID        string
	AccountID string
	Purpose   string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (t ActionToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
