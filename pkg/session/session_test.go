package session_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/events"
	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
	"github.com/aussiebroadwan/gatekeep/pkg/identity"
	"github.com/aussiebroadwan/gatekeep/pkg/oauth"
	"github.com/aussiebroadwan/gatekeep/pkg/session"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
	"github.com/stretchr/testify/require"
)

var ann = map[string]any{"account": map[string]any{"href": "https://idp.test/accounts/1", "username": "ann"}}

// fakeIDP accepts ann/hunter2 over both transports.
type fakeIDP struct {
	srv        *httptest.Server
	failLogout bool
	failMe     bool

	mu       sync.Mutex
	lastForm map[string]string
	revokes  atomic.Int32
}

func newFakeIDP(t *testing.T, opts ...func(*fakeIDP)) *fakeIDP {
	t.Helper()
	f := &fakeIDP{}
	for _, o := range opts {
		o(f)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		form := f.record(r)
		switch {
		case form["username"] == "ann" && form["password"] == "hunter2",
			form["providerId"] == "github" && form["accessToken"] == "gh-token":
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s1", Path: "/"})
			httpx.WriteJSON(w, http.StatusOK, ann)
		default:
			authsdk.ErrInvalidGrant.WriteError(w)
		}
	})
	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		if f.failLogout {
			authsdk.ErrServerError.WriteError(w)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "", Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		form := f.record(r)
		if form["username"] != "ann" || form["password"] != "hunter2" {
			authsdk.ErrInvalidGrant.WriteError(w)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"access_token": "at", "refresh_token": "rt", "token_type": "Bearer", "expires_in": 3600,
		})
	})
	mux.HandleFunc("POST /oauth/revoke", func(w http.ResponseWriter, r *http.Request) {
		f.revokes.Add(1)
		f.record(r)
	})
	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		if f.failMe {
			authsdk.ErrServerError.WriteError(w)
			return
		}
		c, err := r.Cookie("sid")
		if (err == nil && c.Value == "s1") || r.Header.Get("Authorization") == "Bearer at" {
			httpx.WriteJSON(w, http.StatusOK, ann)
			return
		}
		authsdk.ErrUnauthenticated.WriteError(w)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIDP) record(r *http.Request) map[string]string {
	_ = r.ParseForm()
	form := map[string]string{}
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}
	f.mu.Lock()
	f.lastForm = form
	f.mu.Unlock()
	return form
}

func (f *fakeIDP) form() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastForm
}

type harness struct {
	svc    *session.Service
	cache  *identity.Cache
	tokens *oauth.TokenManager
	kinds  []events.Kind
	errs   []error
}

func (h *harness) reset() { h.kinds, h.errs = nil, nil }

// newHarness wires a service. With crossDomain the application lives on
// another origin, so the OAuth transport is used.
func newHarness(t *testing.T, f *fakeIDP, crossDomain bool) *harness {
	t.Helper()
	h := &harness{}
	bus := events.NewBus(events.WithLogger(slogx.Discard()))
	bus.SubscribeAll(func(ev events.Event) {
		h.kinds = append(h.kinds, ev.Kind)
		h.errs = append(h.errs, ev.Err)
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	h.tokens = oauth.NewTokenManager(nil)
	tr, err := oauth.NewTransport(h.tokens, []string{"^" + regexp.QuoteMeta(f.srv.URL)},
		oauth.WithJar(jar), oauth.WithTransportLogger(slogx.Discard()))
	require.NoError(t, err)

	opts := []authsdk.Option{
		authsdk.WithHTTPClient(&http.Client{Transport: tr}),
		authsdk.WithLogger(slogx.Discard()),
	}
	base := f.srv.URL
	if crossDomain {
		base = "https://app.example.test"
		opts = append(opts, authsdk.WithEndpoints(authsdk.Endpoints{Prefix: f.srv.URL}))
	}
	sdk := authsdk.NewSDKClient(base, opts...)

	client := oauth.NewClient(sdk, h.tokens, oauth.WithClientLogger(slogx.Discard()))
	h.cache = identity.NewCache(sdk, bus, identity.WithLogger(slogx.Discard()))
	t.Cleanup(h.cache.Close)
	h.svc = session.NewService(sdk, client, h.cache, bus, session.WithLogger(slogx.Discard()))
	return h
}

func TestSameDomainLogin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFakeIDP(t)
	h := newHarness(t, f, false)
	require.True(t, h.svc.SameDomain("/login"))

	res, err := h.svc.Authenticate(ctx, session.Credentials{Username: "ann", Password: "hunter2"})
	require.NoError(t, err)
	require.NotNil(t, res.Response)
	require.Nil(t, res.Token)
	require.Contains(t, string(res.Body()), `"username":"ann"`)
	require.Equal(t, "ann", res.User.Username)
	require.Equal(t, map[string]string{"username": "ann", "password": "hunter2"}, f.form())
	require.Equal(t, []events.Kind{events.CurrentUser, events.Authenticated}, h.kinds)
	require.True(t, h.cache.Current().IsAuthenticated())

	_, err = h.tokens.Token(ctx)
	require.ErrorIs(t, err, oauth.ErrNoToken, "cookie sessions store no token")
}

func TestSameDomainSocialLogin(t *testing.T) {
	t.Parallel()

	f := newFakeIDP(t)
	h := newHarness(t, f, false)

	_, err := h.svc.Authenticate(context.Background(), session.Credentials{
		ProviderID: "github", AccessToken: "gh-token", Extra: map[string]any{"providerId": "ignored", "remember": "1"},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"providerId": "github", "accessToken": "gh-token", "remember": "1"}, f.form())
}

func TestLoginFailure(t *testing.T) {
	t.Parallel()

	for _, cross := range []bool{false, true} {
		f := newFakeIDP(t)
		h := newHarness(t, f, cross)

		_, err := h.svc.Authenticate(context.Background(), session.Credentials{Username: "ann", Password: "nope"})
		var apiErr *authsdk.Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		require.Equal(t, "invalid username or password", apiErr.Message)
		require.Equal(t, []events.Kind{events.AuthenticationFailed}, h.kinds)
		require.Same(t, err, h.errs[0])
		require.False(t, h.cache.Current().IsResolved())
	}
}

func TestMissingCredentials(t *testing.T) {
	t.Parallel()

	f := newFakeIDP(t)
	h := newHarness(t, f, false)

	_, err := h.svc.Authenticate(context.Background(), session.Credentials{Username: "ann"})
	require.ErrorIs(t, err, session.ErrNoCredentials)
	_, err = h.svc.Authenticate(context.Background(), session.Credentials{ProviderID: "github"})
	require.ErrorIs(t, err, session.ErrNoCredentials)
	require.Equal(t, []events.Kind{events.AuthenticationFailed, events.AuthenticationFailed}, h.kinds)
}

func TestCrossDomainLogin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFakeIDP(t)
	h := newHarness(t, f, true)
	require.False(t, h.svc.SameDomain("/login"))

	res, err := h.svc.Authenticate(ctx, session.Credentials{Username: "ann", Password: "hunter2"})
	require.NoError(t, err)
	require.Nil(t, res.Response)
	require.Equal(t, "at", res.Token.AccessToken)
	require.Contains(t, string(res.Body()), `"access_token":"at"`)
	require.Equal(t, "ann", res.User.Username, "the bearer token reached /me")
	require.Equal(t, "password", f.form()["grant_type"])
	require.Equal(t, []events.Kind{events.CurrentUser, events.Authenticated}, h.kinds)
}

func TestLoginWithoutIdentityStillSucceeds(t *testing.T) {
	t.Parallel()

	f := newFakeIDP(t, func(f *fakeIDP) { f.failMe = true })
	h := newHarness(t, f, false)

	res, err := h.svc.Authenticate(context.Background(), session.Credentials{Username: "ann", Password: "hunter2"})
	require.NoError(t, err)
	require.Nil(t, res.User)
	require.Equal(t, []events.Kind{events.NotLoggedIn}, h.kinds)
}

func TestEndSessionSameDomain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		f := newFakeIDP(t)
		h := newHarness(t, f, false)
		_, err := h.svc.Authenticate(ctx, session.Credentials{Username: "ann", Password: "hunter2"})
		require.NoError(t, err)
		h.reset()

		require.NoError(t, h.svc.EndSession(ctx))
		require.Equal(t, []events.Kind{events.SessionEnded}, h.kinds)
		require.Equal(t, identity.Anonymous, h.cache.Current().State)

		_, err = h.cache.Get(ctx, true)
		require.ErrorIs(t, err, identity.ErrNotAuthenticated, "cookie was cleared")
	})

	t.Run("server error", func(t *testing.T) {
		f := newFakeIDP(t, func(f *fakeIDP) { f.failLogout = true })
		h := newHarness(t, f, false)

		err := h.svc.EndSession(ctx)
		require.Equal(t, http.StatusInternalServerError, authsdk.StatusCode(err))
		require.Equal(t, []events.Kind{events.SessionEnded, events.SessionEndError}, h.kinds)
		require.Nil(t, h.errs[0])
		require.Same(t, err, h.errs[1])
	})
}

func TestEndSessionCrossDomain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("revokes and clears", func(t *testing.T) {
		f := newFakeIDP(t)
		h := newHarness(t, f, true)
		_, err := h.svc.Authenticate(ctx, session.Credentials{Username: "ann", Password: "hunter2"})
		require.NoError(t, err)
		h.reset()

		require.NoError(t, h.svc.EndSession(ctx))
		require.EqualValues(t, 1, f.revokes.Load())
		require.Equal(t, map[string]string{"token": "rt", "token_type_hint": "refresh_token"}, f.form())
		require.Equal(t, []events.Kind{events.SessionEnded}, h.kinds)

		_, err = h.tokens.Token(ctx)
		require.ErrorIs(t, err, oauth.ErrNoToken)
	})

	t.Run("no token", func(t *testing.T) {
		f := newFakeIDP(t)
		h := newHarness(t, f, true)

		err := h.svc.EndSession(ctx)
		require.True(t, errors.Is(err, oauth.ErrNoToken))
		require.Equal(t, []events.Kind{events.SessionEnded, events.SessionEndError}, h.kinds)
		require.Zero(t, f.revokes.Load())
	})
}
