// Package gatekeep wires the SDK together: one token store registry, token
// manager, OAuth client, credential-injecting HTTP client, identity cache,
// session service and event bus per process.
package gatekeep

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"regexp"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/events"
	"github.com/aussiebroadwan/gatekeep/pkg/formx"
	"github.com/aussiebroadwan/gatekeep/pkg/guard"
	"github.com/aussiebroadwan/gatekeep/pkg/identity"
	"github.com/aussiebroadwan/gatekeep/pkg/oauth"
	"github.com/aussiebroadwan/gatekeep/pkg/session"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
	"github.com/aussiebroadwan/gatekeep/pkg/tokenstore"
)

// Gatekeep holds the wired components. Fields are read-only after New.
type Gatekeep struct {
	Config Config

	Bus        *events.Bus
	Stores     *tokenstore.Registry
	Tokens     *oauth.TokenManager
	OAuth      *oauth.Client
	Transport  *oauth.Transport
	HTTPClient *http.Client
	API        *authsdk.SDKClient
	Identity   *identity.Cache
	Session    *session.Service

	logger  *slog.Logger
	closers []io.Closer
}

// Option configures New.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	base       http.RoundTripper
	eventNames map[events.Kind]string
	jar        http.CookieJar
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBaseTransport sets the RoundTripper under the credential Transport.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// WithEventNames renames events on the bus.
func WithEventNames(names map[events.Kind]string) Option {
	return func(o *options) { o.eventNames = names }
}

// WithCookieJar shares a jar with the host instead of creating one.
func WithCookieJar(jar http.CookieJar) Option {
	return func(o *options) { o.jar = jar }
}

// New builds every component from cfg. Close releases the token store.
func New(cfg Config, opts ...Option) (*Gatekeep, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := slogx.OrDefault(o.logger)

	jar := o.jar
	if jar == nil {
		var err error
		if jar, err = cookiejar.New(nil); err != nil {
			return nil, fmt.Errorf("gatekeep: cookie jar: %w", err)
		}
	}

	g := &Gatekeep{Config: cfg, logger: logger}

	stores, err := g.openStores(cfg, jar)
	if err != nil {
		return nil, err
	}
	g.Stores = stores

	g.Tokens = oauth.NewTokenManager(stores,
		oauth.WithStorageKey(cfg.TokenStorageName),
		oauth.WithManagerLogger(logger),
	)

	g.API = authsdk.NewSDKClient(cfg.BaseURL,
		authsdk.WithEndpoints(cfg.Endpoints),
		authsdk.WithLogger(logger),
		authsdk.WithFormOptions(formx.Options{ArrayFormat: formx.ParseArrayFormat(cfg.FormArrayFormat)}),
	)

	authorized := cfg.AuthorizedURIs
	if len(authorized) == 0 {
		authorized = []string{"^" + regexp.QuoteMeta(g.API.URL("/"))}
	}
	g.Transport, err = oauth.NewTransport(g.Tokens, authorized,
		oauth.WithJar(jar),
		oauth.WithBase(o.base),
		oauth.WithTransportLogger(logger),
	)
	if err != nil {
		g.Close()
		return nil, err
	}
	g.HTTPClient = &http.Client{Transport: g.Transport, Timeout: cfg.HTTPTimeout}
	g.API.HTTPClient = g.HTTPClient

	g.OAuth = oauth.NewClient(g.API, g.Tokens, oauth.WithClientLogger(logger))
	g.Bus = events.NewBus(events.WithNames(o.eventNames), events.WithLogger(logger))
	g.Identity = identity.NewCache(g.API, g.Bus, identity.WithLogger(logger))
	g.Session = session.NewService(g.API, g.OAuth, g.Identity, g.Bus,
		session.WithAppOrigin(cfg.AppOrigin),
		session.WithLogger(logger),
	)

	logger.Debug("gatekeep ready",
		"base_url", cfg.BaseURL,
		"endpoint_prefix", cfg.Endpoints.Prefix,
		"token_store", stores.DefaultName(),
	)
	return g, nil
}

// openStores registers the memory and cookie backends, plus the selected
// file-backed one, and makes the configured type the default.
func (g *Gatekeep) openStores(cfg Config, jar http.CookieJar) (*tokenstore.Registry, error) {
	reg := tokenstore.NewRegistry()

	cookies, err := tokenstore.NewCookie(jar, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("gatekeep: cookie store: %w", err)
	}
	reg.Register(tokenstore.Cookie, cookies)

	switch cfg.TokenStoreType {
	case tokenstore.Bolt:
		s, err := tokenstore.OpenBolt(cfg.TokenStorePath)
		if err != nil {
			return nil, fmt.Errorf("gatekeep: %w", err)
		}
		g.closers = append(g.closers, s)
		reg.Register(tokenstore.Bolt, s)
	case tokenstore.SQLite:
		s, err := tokenstore.OpenSQLite(cfg.TokenStorePath)
		if err != nil {
			return nil, fmt.Errorf("gatekeep: %w", err)
		}
		g.closers = append(g.closers, s)
		reg.Register(tokenstore.SQLite, s)
	}

	if cfg.TokenStoreType != "" {
		if err := reg.SetDefault(cfg.TokenStoreType); err != nil {
			g.Close()
			return nil, fmt.Errorf("gatekeep: token store: %w", err)
		}
	}
	return reg, nil
}

// EnablePathRouter returns a guard for a path-based router.
func (g *Gatekeep) EnablePathRouter(nav guard.Navigator, cfg guard.Config) *guard.Guard {
	return guard.EnablePathRouter(g.guardDeps(nav), cfg)
}

// EnableStateRouter returns a guard for a state-based router.
func (g *Gatekeep) EnableStateRouter(nav guard.Navigator, cfg guard.Config) *guard.Guard {
	return guard.EnableStateRouter(g.guardDeps(nav), cfg)
}

// EnableRouteTable returns the guard a route table declares.
func (g *Gatekeep) EnableRouteTable(nav guard.Navigator, rt *guard.RouteTable) *guard.Guard {
	return rt.Enable(g.guardDeps(nav))
}

func (g *Gatekeep) guardDeps(nav guard.Navigator) guard.Deps {
	return guard.Deps{Cache: g.Identity, Bus: g.Bus, Navigator: nav, Logger: g.logger}
}

// Close releases file-backed token stores.
func (g *Gatekeep) Close() error {
	if g.Identity != nil {
		g.Identity.Close()
	}
	var errs []error
	for _, c := range g.closers {
		errs = append(errs, c.Close())
	}
	g.closers = nil
	return errors.Join(errs...)
}
