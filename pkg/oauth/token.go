// Package oauth owns the client side of the OAuth2 token lifecycle: the
// persisted token record, the three network verbs against the identity
// provider, and an http.RoundTripper that attaches bearer credentials.
//
// # Wiring
//
// A TokenManager persists the record through a tokenstore.Store. A Client
// performs authenticate, refresh and revoke and registers itself as the
// manager's refresher, so an expired token is refreshed transparently the
// next time AccessToken is called:
//
//	tokens := oauth.NewTokenManager(registry)
//	client := oauth.NewClient(sdk, tokens)
//	transport, _ := oauth.NewTransport(tokens, []string{`^https://api\.example\.com/`})
//
// Concurrent refreshes are coalesced: one network call is in flight at a
// time and every waiter receives its result.
package oauth

import (
	"time"

	"golang.org/x/oauth2"
)

// Token is the persisted credential bundle. Expiry is absolute and is
// computed once when the token is stored. A zero Expiry never expires.
type Token struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenType    string    `json:"tokenType"`
	Expiry       time.Time `json:"expiresAt,omitzero"`
}

// Expired reports whether now is at or past the expiry.
func (t *Token) Expired(now time.Time) bool {
	return !t.Expiry.IsZero() && !now.Before(t.Expiry)
}

// OAuth2 converts to the x/oauth2 representation.
func (t *Token) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}
