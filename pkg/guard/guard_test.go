package guard_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/events"
	"github.com/aussiebroadwan/gatekeep/pkg/guard"
	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
	"github.com/aussiebroadwan/gatekeep/pkg/identity"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
	"github.com/stretchr/testify/require"
)

type user struct {
	href   string
	groups []string
}

type env struct {
	cache *identity.Cache
	bus   *events.Bus
	hits  atomic.Int32

	mu     sync.Mutex
	counts map[events.Kind]int
	navs   []guard.Target
}

// newEnv serves /me as u, or 401 when u is nil. A non-nil block holds /me
// until closed.
func newEnv(t *testing.T, u *user, block chan struct{}) *env {
	t.Helper()
	e := &env{counts: map[events.Kind]int{}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.hits.Add(1)
		if block != nil {
			<-block
		}
		if u == nil {
			authsdk.ErrUnauthenticated.WriteError(w)
			return
		}
		groups := make([]map[string]string, 0, len(u.groups))
		for _, g := range u.groups {
			groups = append(groups, map[string]string{"name": g})
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"account": map[string]any{"href": u.href, "username": "ann", "groups": groups},
		})
	}))
	t.Cleanup(srv.Close)
	if block != nil {
		t.Cleanup(func() { close(block) })
	}

	e.bus = events.NewBus(events.WithLogger(slogx.Discard()))
	e.bus.SubscribeAll(func(ev events.Event) {
		e.mu.Lock()
		e.counts[ev.Kind]++
		e.mu.Unlock()
	})
	sdk := authsdk.NewSDKClient(srv.URL, authsdk.WithLogger(slogx.Discard()))
	e.cache = identity.NewCache(sdk, e.bus, identity.WithLogger(slogx.Discard()))
	t.Cleanup(e.cache.Close)
	return e
}

func (e *env) count(k events.Kind) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[k]
}

func (e *env) navigated() []guard.Target {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]guard.Target(nil), e.navs...)
}

func (e *env) deps() guard.Deps {
	return guard.Deps{
		Cache: e.cache,
		Bus:   e.bus,
		Navigator: guard.NavigatorFunc(func(_ context.Context, to guard.Target) error {
			e.mu.Lock()
			e.navs = append(e.navs, to)
			e.mu.Unlock()
			return nil
		}),
		Logger: slogx.Discard(),
	}
}

var (
	loginPath  = guard.Target{Name: "login", Path: "/login"}
	homePath   = guard.Target{Name: "home", Path: "/"}
	forbidPath = guard.Target{Name: "forbidden", Path: "/forbidden"}
	adminPath  = guard.Target{Name: "admin", Path: "/admin"}
)

func fullConfig() guard.Config {
	return guard.Config{Login: &loginPath, DefaultPostLogin: &homePath, Forbidden: &forbidPath}
}

func admins() *guard.AuthorizeRule { return &guard.AuthorizeRule{Group: "admins"} }

func TestRequiresLogin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := guard.Transition{To: adminPath, Policy: guard.Policy{Authenticate: true}}

	t.Run("anonymous is sent to login", func(t *testing.T) {
		e := newEnv(t, nil, nil)
		g := guard.EnablePathRouter(e.deps(), fullConfig())

		d := g.Check(ctx, tr)
		require.Equal(t, guard.Redirect, d.Kind)
		require.Equal(t, loginPath, d.Target)
		require.ErrorIs(t, d.Reason, guard.ErrUnauthenticated)
		require.Equal(t, 1, e.count(events.RouteChangeUnauthenticated))
		require.Zero(t, e.count(events.RouteChangeUnauthorized))

		p, ok := g.Pending()
		require.True(t, ok)
		require.Equal(t, adminPath, p)

		// The anonymous identity is cached.
		d = g.Check(ctx, tr)
		require.Equal(t, guard.Redirect, d.Kind)
		require.EqualValues(t, 1, e.hits.Load())
	})

	t.Run("no login target denies", func(t *testing.T) {
		e := newEnv(t, nil, nil)
		g := guard.EnablePathRouter(e.deps(), guard.Config{})

		d := g.Check(ctx, tr)
		require.Equal(t, guard.Deny, d.Kind)
		require.ErrorIs(t, d.Reason, guard.ErrUnauthenticated)
	})

	t.Run("resolves then allows", func(t *testing.T) {
		e := newEnv(t, &user{href: "h"}, nil)
		g := guard.EnablePathRouter(e.deps(), fullConfig())

		d := g.Check(ctx, tr)
		require.Equal(t, guard.Allow, d.Kind)
		require.Zero(t, e.count(events.RouteChangeUnauthenticated))
		_, ok := g.Pending()
		require.False(t, ok)
	})
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("missing group while unresolved", func(t *testing.T) {
		e := newEnv(t, &user{href: "h", groups: []string{"users"}}, nil)
		g := guard.EnablePathRouter(e.deps(), fullConfig())

		d := g.Check(ctx, guard.Transition{To: adminPath, Policy: guard.Policy{Authorize: admins()}})
		require.Equal(t, guard.Redirect, d.Kind)
		require.Equal(t, forbidPath, d.Target)
		require.ErrorIs(t, d.Reason, guard.ErrUnauthorized)
		require.Equal(t, 1, e.count(events.RouteChangeUnauthorized))
		require.Zero(t, e.count(events.RouteChangeUnauthenticated))
	})

	t.Run("missing group while authenticated", func(t *testing.T) {
		e := newEnv(t, &user{href: "h", groups: []string{"users"}}, nil)
		_, err := e.cache.Get(ctx, false)
		require.NoError(t, err)
		g := guard.EnablePathRouter(e.deps(), guard.Config{})

		d := g.Check(ctx, guard.Transition{To: adminPath, Policy: guard.Policy{Authorize: admins()}})
		require.Equal(t, guard.Deny, d.Kind)
		require.Equal(t, 1, e.count(events.RouteChangeUnauthorized))
	})

	t.Run("member", func(t *testing.T) {
		e := newEnv(t, &user{href: "h", groups: []string{"users", "admins"}}, nil)
		g := guard.EnablePathRouter(e.deps(), fullConfig())

		require.Equal(t, guard.Allow, g.Check(ctx, guard.Transition{To: adminPath, Policy: guard.Policy{Authorize: admins()}}).Kind)
		require.Equal(t, guard.Allow, g.Check(ctx, guard.Transition{To: adminPath, Policy: guard.Policy{
			Authorize: &guard.AuthorizeRule{Group: "/^ADMIN/i"},
		}}).Kind)
		require.Equal(t, guard.Allow, g.Check(ctx, guard.Transition{To: adminPath, Policy: guard.Policy{
			Authorize: &guard.AuthorizeRule{Pattern: regexp.MustCompile(`^us`)},
		}}).Kind)
		require.Zero(t, e.count(events.RouteChangeUnauthorized))
	})

	t.Run("literal is exact", func(t *testing.T) {
		e := newEnv(t, &user{href: "h", groups: []string{"admins-eu"}}, nil)
		g := guard.EnablePathRouter(e.deps(), fullConfig())

		d := g.Check(ctx, guard.Transition{To: adminPath, Policy: guard.Policy{Authorize: admins()}})
		require.Equal(t, guard.Redirect, d.Kind)
	})

	t.Run("rule without group fails closed", func(t *testing.T) {
		e := newEnv(t, &user{href: "h", groups: []string{"admins"}}, nil)
		g := guard.EnablePathRouter(e.deps(), guard.Config{})

		d := g.Check(ctx, guard.Transition{To: adminPath, Policy: guard.Policy{Authorize: &guard.AuthorizeRule{}}})
		require.Equal(t, guard.Deny, d.Kind)
		require.ErrorIs(t, d.Reason, guard.ErrUnauthorized)
	})
}

func TestWaitForUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := guard.Transition{To: homePath, Policy: guard.Policy{WaitForUser: true}}

	t.Run("anonymous proceeds", func(t *testing.T) {
		e := newEnv(t, nil, nil)
		g := guard.EnablePathRouter(e.deps(), fullConfig())

		require.Equal(t, guard.Allow, g.Check(ctx, tr).Kind)
		require.EqualValues(t, 1, e.hits.Load())
		require.Equal(t, identity.Anonymous, e.cache.Current().State)
		require.Zero(t, e.count(events.RouteChangeUnauthenticated))

		require.Equal(t, guard.Allow, g.Check(ctx, tr).Kind)
		require.EqualValues(t, 1, e.hits.Load(), "resolved identity is not refetched")
	})

	t.Run("login page redirects once the user is known", func(t *testing.T) {
		e := newEnv(t, &user{href: "h"}, nil)
		g := guard.EnablePathRouter(e.deps(), fullConfig())

		d := g.Check(ctx, guard.Transition{To: loginPath, Policy: guard.Policy{WaitForUser: true}})
		require.Equal(t, guard.Redirect, d.Kind)
		require.Equal(t, homePath, d.Target)
	})
}

func TestLoginDestinationWhenLoggedIn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("redirects to default", func(t *testing.T) {
		e := newEnv(t, &user{href: "h"}, nil)
		_, _ = e.cache.Get(ctx, false)
		g := guard.EnablePathRouter(e.deps(), fullConfig())

		d := g.Check(ctx, guard.Transition{To: guard.Target{Path: "/login"}})
		require.Equal(t, guard.Redirect, d.Kind)
		require.Equal(t, homePath, d.Target)
		require.NoError(t, d.Reason)
	})

	t.Run("no default allows", func(t *testing.T) {
		e := newEnv(t, &user{href: "h"}, nil)
		_, _ = e.cache.Get(ctx, false)
		g := guard.EnablePathRouter(e.deps(), guard.Config{Login: &loginPath})

		require.Equal(t, guard.Allow, g.Check(ctx, guard.Transition{To: loginPath}).Kind)
	})

	t.Run("user without href", func(t *testing.T) {
		e := newEnv(t, &user{}, nil)
		_, _ = e.cache.Get(ctx, false)
		g := guard.EnablePathRouter(e.deps(), fullConfig())

		require.Equal(t, guard.Allow, g.Check(ctx, guard.Transition{To: loginPath}).Kind)
	})

	t.Run("anonymous may visit login", func(t *testing.T) {
		e := newEnv(t, nil, nil)
		g := guard.EnablePathRouter(e.deps(), fullConfig())

		require.Equal(t, guard.Allow, g.Check(ctx, guard.Transition{To: loginPath}).Kind)
		require.Zero(t, e.hits.Load())
	})
}

func TestStateRouter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t, nil, nil)
	g := guard.EnableStateRouter(e.deps(), guard.Config{Login: &guard.Target{Name: "login"}})

	d := g.Check(ctx, guard.Transition{To: guard.Target{Name: "admin"}, Policy: guard.Policy{Authenticate: true}})
	require.Equal(t, guard.Redirect, d.Kind)
	require.Equal(t, "login", d.Target.Name)
	require.Equal(t, 1, e.count(events.StateChangeUnauthenticated))
	require.Zero(t, e.count(events.RouteChangeUnauthenticated))
}

func TestPendingRedirect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	wanted := guard.Target{Path: "/admin", Params: map[string]string{"tab": "users"}}

	t.Run("consumed once", func(t *testing.T) {
		e := newEnv(t, nil, nil)
		g := guard.EnablePathRouter(e.deps(), fullConfig())

		g.Check(ctx, guard.Transition{To: wanted, Policy: guard.Policy{Authenticate: true}})
		e.bus.Publish(events.Authenticated, nil, nil)
		require.Equal(t, []guard.Target{wanted}, e.navigated())
		_, ok := g.Pending()
		require.False(t, ok)

		e.bus.Publish(events.Authenticated, nil, nil)
		require.Equal(t, []guard.Target{wanted, homePath}, e.navigated())
	})

	t.Run("auto redirect off", func(t *testing.T) {
		e := newEnv(t, nil, nil)
		off := false
		cfg := fullConfig()
		cfg.AutoRedirect = &off
		g := guard.EnablePathRouter(e.deps(), cfg)

		g.Check(ctx, guard.Transition{To: wanted, Policy: guard.Policy{Authenticate: true}})
		e.bus.Publish(events.Authenticated, nil, nil)
		require.Equal(t, []guard.Target{homePath}, e.navigated())
	})

	t.Run("nothing configured is a no-op", func(t *testing.T) {
		e := newEnv(t, nil, nil)
		g := guard.EnablePathRouter(e.deps(), guard.Config{})
		e.bus.Publish(events.Authenticated, nil, nil)
		require.Empty(t, e.navigated())

		g.Close()
		g.Check(ctx, guard.Transition{To: wanted, Policy: guard.Policy{Authenticate: true}})
		e.bus.Publish(events.Authenticated, nil, nil)
		require.Empty(t, e.navigated())
	})
}

type navKey struct{}

func TestPostLoginNavigationContext(t *testing.T) {
	t.Parallel()

	t.Run("carries the guard context", func(t *testing.T) {
		e := newEnv(t, nil, nil)
		var got atomic.Value
		deps := e.deps()
		deps.Context = context.WithValue(context.Background(), navKey{}, "host")
		deps.Navigator = guard.NavigatorFunc(func(ctx context.Context, _ guard.Target) error {
			got.Store(ctx.Value(navKey{}))
			return nil
		})
		guard.EnablePathRouter(deps, fullConfig())

		e.bus.Publish(events.Authenticated, nil, nil)
		require.Equal(t, "host", got.Load())
	})

	t.Run("done context skips navigation", func(t *testing.T) {
		e := newEnv(t, nil, nil)
		ctx, cancel := context.WithCancel(context.Background())
		deps := e.deps()
		deps.Context = ctx
		g := guard.EnablePathRouter(deps, fullConfig())

		cancel()
		g.Check(context.Background(), guard.Transition{To: adminPath, Policy: guard.Policy{Authenticate: true}})
		e.bus.Publish(events.Authenticated, nil, nil)
		require.Empty(t, e.navigated())
		_, ok := g.Pending()
		require.False(t, ok)
	})
}

func TestCancelledCheckDenies(t *testing.T) {
	t.Parallel()

	e := newEnv(t, &user{href: "h"}, make(chan struct{}))
	g := guard.EnablePathRouter(e.deps(), fullConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d := g.Check(ctx, guard.Transition{To: adminPath, Policy: guard.Policy{Authenticate: true}})
	require.Equal(t, guard.Deny, d.Kind)
	require.ErrorIs(t, d.Reason, context.DeadlineExceeded)
	require.Zero(t, e.count(events.RouteChangeUnauthenticated))
}

func TestApplyNavigatesOnRedirect(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil, nil)
	g := guard.EnablePathRouter(e.deps(), fullConfig())

	d, err := g.Apply(context.Background(), guard.Transition{To: adminPath, Policy: guard.Policy{Authenticate: true}})
	require.NoError(t, err)
	require.Equal(t, guard.Redirect, d.Kind)
	require.Equal(t, []guard.Target{loginPath}, e.navigated())

	d, err = g.Apply(context.Background(), guard.Transition{To: homePath})
	require.NoError(t, err)
	require.Equal(t, guard.Allow, d.Kind)
	require.Len(t, e.navigated(), 1)
}
