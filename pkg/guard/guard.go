package guard

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/gatekeep/pkg/events"
	"github.com/aussiebroadwan/gatekeep/pkg/identity"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
)

// Navigator is the router. The guard uses it after login to go to the
// pending or default destination. Post-login navigation runs on the
// publisher's goroutine, so Navigate should return promptly.
type Navigator interface {
	Navigate(ctx context.Context, to Target) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, to Target) error

func (f NavigatorFunc) Navigate(ctx context.Context, to Target) error { return f(ctx, to) }

// Deps are the guard's collaborators. Navigator may be nil if the host
// handles post-login navigation itself.
type Deps struct {
	Cache     *identity.Cache
	Bus       *events.Bus
	Navigator Navigator
	Logger    *slog.Logger

	// Context scopes post-login navigation. Nil means context.Background.
	// Once it is done, logins no longer navigate.
	Context context.Context
}

// Config is shared by both router flavours. A nil target is not
// configured.
type Config struct {
	// AutoRedirect sends the user to the pending destination after login.
	// Nil means true.
	AutoRedirect *bool

	DefaultPostLogin *Target
	Forbidden        *Target
	Login            *Target
}

func (c Config) autoRedirect() bool { return c.AutoRedirect == nil || *c.AutoRedirect }

type mode uint8

const (
	stateMode mode = iota
	pathMode
)

// Guard decides every navigation against the route table and the
// current identity.
type Guard struct {
	cache  *identity.Cache
	bus    *events.Bus
	nav    Navigator
	cfg    Config
	mode   mode
	logger *slog.Logger
	ctx    context.Context

	unauthenticated events.Kind
	unauthorized    events.Kind

	mu      sync.Mutex
	pending *Target

	unsubscribe func()
}

// EnableStateRouter guards a router that navigates by state name.
func EnableStateRouter(deps Deps, cfg Config) *Guard {
	return newGuard(deps, cfg, stateMode)
}

// EnablePathRouter guards a router that navigates by path.
func EnablePathRouter(deps Deps, cfg Config) *Guard {
	return newGuard(deps, cfg, pathMode)
}

func newGuard(deps Deps, cfg Config, m mode) *Guard {
	g := &Guard{
		cache:           deps.Cache,
		bus:             deps.Bus,
		nav:             deps.Navigator,
		cfg:             cfg,
		mode:            m,
		logger:          slogx.OrDefault(deps.Logger),
		ctx:             deps.Context,
		unauthenticated: events.StateChangeUnauthenticated,
		unauthorized:    events.StateChangeUnauthorized,
	}
	if g.ctx == nil {
		g.ctx = context.Background()
	}
	if m == pathMode {
		g.unauthenticated = events.RouteChangeUnauthenticated
		g.unauthorized = events.RouteChangeUnauthorized
	}
	g.unsubscribe = g.bus.Subscribe(events.Authenticated, g.onAuthenticated)
	return g
}

// Close stops reacting to logins.
func (g *Guard) Close() { g.unsubscribe() }

// Check decides tr. It blocks while the identity is resolved; if ctx ends
// first the answer is Deny with ctx's error.
func (g *Guard) Check(ctx context.Context, tr Transition) Decision {
	id := g.cache.Current()

	if tr.Policy.needsLogin() && !id.IsAuthenticated() {
		user, err := g.cache.Get(ctx, false)
		if cerr := ctx.Err(); cerr != nil {
			return Decision{Kind: Deny, Reason: cerr}
		}
		if err != nil {
			g.logger.DebugContext(ctx, "navigation needs login", "to", tr.To.String())
			g.setPending(tr.To)
			g.bus.Publish(g.unauthenticated, tr, ErrUnauthenticated)
			return redirectOrDeny(g.cfg.Login, ErrUnauthenticated)
		}
		return g.settled(ctx, tr, identity.AuthenticatedAs(user))
	}

	if tr.Policy.WaitForUser && !id.IsResolved() {
		_, _ = g.cache.Get(ctx, false)
		if cerr := ctx.Err(); cerr != nil {
			return Decision{Kind: Deny, Reason: cerr}
		}
		return g.settled(ctx, tr, g.cache.Current())
	}

	return g.settled(ctx, tr, id)
}

// settled runs the checks that need no identity fetch.
func (g *Guard) settled(ctx context.Context, tr Transition, id identity.Identity) Decision {
	if id.IsAuthenticated() && tr.Policy.Authorize != nil && !g.authorized(ctx, id.User, tr.Policy.Authorize) {
		g.bus.Publish(g.unauthorized, tr, ErrUnauthorized)
		return redirectOrDeny(g.cfg.Forbidden, ErrUnauthorized)
	}

	if id.IsAuthenticated() && id.User.Href != "" && g.isLogin(tr.To) {
		if g.cfg.DefaultPostLogin != nil {
			return Decision{Kind: Redirect, Target: *g.cfg.DefaultPostLogin}
		}
	}
	return allow()
}

func (g *Guard) authorized(ctx context.Context, u *identity.User, rule *AuthorizeRule) bool {
	m, err := rule.matcher()
	if err != nil {
		g.logger.ErrorContext(ctx, "invalid authorize rule, denying", "error", err)
		return false
	}
	return u.GroupTest(m)
}

func (g *Guard) isLogin(t Target) bool {
	if g.cfg.Login == nil {
		return false
	}
	if g.mode == pathMode {
		return t.Path != "" && t.Path == g.cfg.Login.Path
	}
	return t.Name != "" && t.Name == g.cfg.Login.Name
}

// Apply runs Check and, for a Redirect, navigates there.
func (g *Guard) Apply(ctx context.Context, tr Transition) (Decision, error) {
	d := g.Check(ctx, tr)
	if d.Kind != Redirect || g.nav == nil {
		return d, nil
	}
	return d, g.nav.Navigate(ctx, d.Target)
}

func (g *Guard) setPending(t Target) {
	g.mu.Lock()
	g.pending = &t
	g.mu.Unlock()
}

// Pending returns the destination recorded by the last unauthenticated
// transition, without consuming it.
func (g *Guard) Pending() (Target, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return Target{}, false
	}
	return *g.pending, true
}

func (g *Guard) takePending() *Target {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.pending
	g.pending = nil
	return p
}

func (g *Guard) onAuthenticated(events.Event) {
	pending := g.takePending()

	var to *Target
	switch {
	case pending != nil && g.cfg.autoRedirect():
		to = pending
	case g.cfg.DefaultPostLogin != nil:
		to = g.cfg.DefaultPostLogin
	}
	if to == nil || g.nav == nil {
		return
	}

	ctx := g.ctx
	if err := ctx.Err(); err != nil {
		g.logger.DebugContext(ctx, "skipping post-login navigation", "to", to.String(), "error", err)
		return
	}
	if err := g.nav.Navigate(ctx, *to); err != nil {
		g.logger.WarnContext(ctx, "post-login navigation failed", "to", to.String(), "error", err)
	}
}
