package authsdk

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

// ============================================================================
// Token Types
// ============================================================================

// TokenResponse is the token endpoint's reply (RFC 6749 5.1).
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds. Zero means the server did not
	// say.
	ExpiresIn int    `json:"expires_in,omitempty"`
	Scope     string `json:"scope,omitempty"`

	// Raw is the body as received, for callers that need extra fields.
	Raw json.RawMessage `json:"-"`
}

// RevokeRequest is the body of an RFC 7009 revocation.
type RevokeRequest struct {
	Token         string `json:"token"`
	TokenTypeHint string `json:"token_type_hint,omitempty"`
}

const (
	HintAccessToken  = "access_token"
	HintRefreshToken = "refresh_token"

	GrantPassword     = "password"
	GrantRefreshToken = "refresh_token"
)

// ============================================================================
// Account Types
// ============================================================================

// Account statuses.
const (
	StatusEnabled    = "ENABLED"
	StatusUnverified = "UNVERIFIED"
	StatusDisabled   = "DISABLED"
)

// Account is the current-user resource. Field names follow the JSON the
// browser SDKs already consume.
type Account struct {
	Href       string         `json:"href"`
	Username   string         `json:"username"`
	Email      string         `json:"email"`
	GivenName  string         `json:"givenName,omitempty"`
	MiddleName string         `json:"middleName,omitempty"`
	Surname    string         `json:"surname,omitempty"`
	FullName   string         `json:"fullName,omitempty"`
	Status     string         `json:"status"`
	Groups     Groups         `json:"groups"`
	CustomData map[string]any `json:"customData,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	ModifiedAt time.Time      `json:"modifiedAt"`
}

type Group struct {
	Href string `json:"href,omitempty"`
	Name string `json:"name"`
}

// Groups decodes from either a bare array or an expanded collection
// ({"items": [...]}), and always encodes as the collection.
type Groups []Group

func (g Groups) MarshalJSON() ([]byte, error) {
	items := []Group(g)
	if items == nil {
		items = []Group{}
	}
	return json.Marshal(struct {
		Items []Group `json:"items"`
	}{items})
}

func (g *Groups) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*g = nil
		return nil
	}
	if b[0] == '[' {
		var items []Group
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*g = items
		return nil
	}
	var coll struct {
		Items []Group `json:"items"`
	}
	if err := json.Unmarshal(b, &coll); err != nil {
		return err
	}
	*g = coll.Items
	return nil
}

// Names lists the group names in order.
func (g Groups) Names() []string {
	out := make([]string, len(g))
	for i, grp := range g {
		out[i] = grp.Name
	}
	return out
}

// CurrentUserResponse is what GET /me returns: the account wrapped in an
// "account" member. Flat bodies are accepted too.
type CurrentUserResponse struct {
	Account Account `json:"account"`
}

// RegisterRequest creates an account. Extra form fields go in CustomData.
type RegisterRequest struct {
	Username   string         `json:"username,omitempty"`
	Email      string         `json:"email"`
	Password   string         `json:"password"`
	GivenName  string         `json:"givenName,omitempty"`
	MiddleName string         `json:"middleName,omitempty"`
	Surname    string         `json:"surname,omitempty"`
	CustomData map[string]any `json:"customData,omitempty"`
}

// ============================================================================
// Misc
// ============================================================================

// Response is a raw successful reply, for calls whose body the caller wants
// to inspect (e.g. the cookie login response).
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime,omitempty"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}
