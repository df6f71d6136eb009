package domain

import (
	"strings"
	"time"
)

// Account statuses. Only ENABLED accounts may sign in.
const (
	StatusEnabled    = "ENABLED"
	StatusUnverified = "UNVERIFIED"
	StatusDisabled   = "DISABLED"
)

type Account struct {
	ID           string
	Username     string
	Email        string
	GivenName    string
	MiddleName   string
	Surname      string
	PasswordHash string // argon2 encoded
	Status       string
	Groups       []string
	CustomData   map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName joins the non-empty name parts.
func (a Account) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.GivenName, a.MiddleName, a.Surname} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func (a Account) Enabled() bool { return a.Status == StatusEnabled }
