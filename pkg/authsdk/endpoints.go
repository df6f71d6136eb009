package authsdk

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Endpoints are the identity API paths. Env tags let the host override any
// of them; see gatekeep.Config.
type Endpoints struct {
	// Prefix, when set, replaces BaseURL as the root every path is joined
	// to. Pointing it at another origin switches sessions to OAuth.
	Prefix string `env:"ENDPOINT_PREFIX" json:"prefix,omitempty"`

	Login             string `env:"AUTHENTICATION_ENDPOINT" envDefault:"/login" json:"login"`
	Logout            string `env:"DESTROY_SESSION_ENDPOINT" envDefault:"/logout" json:"logout"`
	CurrentUser       string `env:"CURRENT_USER_URI" envDefault:"/me" json:"currentUser"`
	OAuthToken        string `env:"OAUTH_AUTHENTICATION_ENDPOINT" envDefault:"/oauth/token" json:"oauthToken"`
	OAuthRevoke       string `env:"OAUTH_REVOKE_ENDPOINT" envDefault:"/oauth/revoke" json:"oauthRevoke"`
	Register          string `env:"REGISTER_URI" envDefault:"/register" json:"register"`
	EmailVerification string `env:"EMAIL_VERIFICATION_ENDPOINT" envDefault:"/verify" json:"emailVerification"`
	ForgotPassword    string `env:"FORGOT_PASSWORD_ENDPOINT" envDefault:"/forgot" json:"forgotPassword"`
	ChangePassword    string `env:"CHANGE_PASSWORD_ENDPOINT" envDefault:"/change" json:"changePassword"`
	SPAConfig         string `env:"SPA_CONFIG_ENDPOINT" envDefault:"/spa-config" json:"spaConfig"`
}

// DefaultEndpoints returns the standard endpoint paths.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:             "/login",
		Logout:            "/logout",
		CurrentUser:       "/me",
		OAuthToken:        "/oauth/token",
		OAuthRevoke:       "/oauth/revoke",
		Register:          "/register",
		EmailVerification: "/verify",
		ForgotPassword:    "/forgot",
		ChangePassword:    "/change",
		SPAConfig:         "/spa-config",
	}
}

// withDefaults fills empty paths so a partially populated literal works.
func (e Endpoints) withDefaults() Endpoints {
	d := DefaultEndpoints()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&e.Login, d.Login)
	fill(&e.Logout, d.Logout)
	fill(&e.CurrentUser, d.CurrentUser)
	fill(&e.OAuthToken, d.OAuthToken)
	fill(&e.OAuthRevoke, d.OAuthRevoke)
	fill(&e.Register, d.Register)
	fill(&e.EmailVerification, d.EmailVerification)
	fill(&e.ForgotPassword, d.ForgotPassword)
	fill(&e.ChangePassword, d.ChangePassword)
	fill(&e.SPAConfig, d.SPAConfig)
	return e
}

// Origin returns "scheme://host[:port]" of an absolute URL, lower-cased.
// Default ports are dropped so "https://a:443" and "https://a" compare
// equal.
func Origin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("authsdk: parse %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("authsdk: %q is not an absolute URL", raw)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		host = "[" + host + "]"
	}
	return scheme + "://" + host, nil
}
