// Package session logs users in and out over whichever transport the
// identity API's location calls for: a cookie session when the login
// endpoint shares the application's origin, OAuth tokens otherwise.
package session

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net/http"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/events"
	"github.com/aussiebroadwan/gatekeep/pkg/identity"
	"github.com/aussiebroadwan/gatekeep/pkg/oauth"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
)

var ErrNoCredentials = errors.New("session: username and password, or provider id and access token, are required")

// Credentials is either a username/password pair or a social provider
// assertion. Username may also be an email address.
type Credentials struct {
	Username string
	Password string

	ProviderID  string
	AccessToken string

	// Extra fields are sent alongside; they cannot replace the ones above.
	Extra map[string]any
}

func (c Credentials) social() bool { return c.ProviderID != "" }

func (c Credentials) validate() error {
	if c.social() {
		if c.AccessToken == "" {
			return ErrNoCredentials
		}
		return nil
	}
	if c.Username == "" || c.Password == "" {
		return ErrNoCredentials
	}
	return nil
}

func (c Credentials) form() map[string]any {
	data := make(map[string]any, len(c.Extra)+2)
	maps.Copy(data, c.Extra)
	if c.social() {
		data["providerId"] = c.ProviderID
		data["accessToken"] = c.AccessToken
		return data
	}
	data["username"] = c.Username
	data["password"] = c.Password
	return data
}

// Result is what a successful login returned. Exactly one of Response and
// Token is set, depending on the transport.
type Result struct {
	Response *authsdk.Response
	Token    *authsdk.TokenResponse

	// User is nil if the identity could not be refetched after login.
	User *identity.User
}

// Body is the raw login response body.
func (r *Result) Body() []byte {
	if r.Response != nil {
		return r.Response.Body
	}
	if r.Token != nil {
		return r.Token.Raw
	}
	return nil
}

// Service drives login, logout and registration against the server.
type Service struct {
	sdk    *authsdk.SDKClient
	oauth  *oauth.Client
	cache  *identity.Cache
	bus    *events.Bus
	origin string
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithAppOrigin sets the origin endpoints are compared against. It defaults
// to the SDK base URL.
func WithAppOrigin(origin string) Option {
	return func(s *Service) {
		if origin != "" {
			s.origin = origin
		}
	}
}

// WithLogger sets the logger. Nil falls back to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = slogx.OrDefault(l) }
}

// NewService wires the session flows to the given clients and bus.
func NewService(sdk *authsdk.SDKClient, client *oauth.Client, cache *identity.Cache, bus *events.Bus, opts ...Option) *Service {
	s := &Service{
		sdk:    sdk,
		oauth:  client,
		cache:  cache,
		bus:    bus,
		origin: sdk.BaseURL,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SameDomain reports whether endpoint resolves to the application's origin.
func (s *Service) SameDomain(endpoint string) bool {
	return s.sdk.SameOrigin(endpoint, s.origin)
}

// Authenticate logs in. On success the identity is refetched, bypassing
// the cache, and events.Authenticated is published with the Result. On
// failure events.AuthenticationFailed is published and the *authsdk.Error
// is returned.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (*Result, error) {
	if err := creds.validate(); err != nil {
		s.bus.Publish(events.AuthenticationFailed, nil, err)
		return nil, err
	}

	headers := http.Header{"Accept": {"application/json"}}
	res := &Result{}
	var err error
	if s.SameDomain(s.sdk.Endpoints.Login) {
		res.Response, err = s.sdk.Login(ctx, creds.form(), headers)
	} else {
		res.Token, err = s.oauth.Authenticate(ctx, creds.form(), headers)
	}
	if err != nil {
		s.logger.InfoContext(ctx, "authentication failed", "status", authsdk.StatusCode(err), "error", err)
		s.bus.Publish(events.AuthenticationFailed, nil, err)
		return nil, err
	}

	u, err := s.cache.Get(ctx, true)
	if err != nil {
		s.logger.WarnContext(ctx, "logged in but current user is unavailable", "error", err)
		return res, nil
	}
	res.User = u
	s.bus.Publish(events.Authenticated, res, nil)
	return res, nil
}

// EndSession logs out. events.SessionEnded is always published; if the
// server call failed events.SessionEndError follows it with the error,
// which is also returned.
func (s *Service) EndSession(ctx context.Context) error {
	var err error
	if s.SameDomain(s.sdk.Endpoints.Logout) {
		err = s.sdk.Logout(ctx)
	} else {
		err = s.oauth.Revoke(ctx)
	}

	s.bus.Publish(events.SessionEnded, nil, nil)
	if err != nil {
		s.logger.WarnContext(ctx, "logout failed", "error", err)
		s.bus.Publish(events.SessionEndError, nil, err)
	}
	return err
}
