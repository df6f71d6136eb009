package oauth_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
	"github.com/aussiebroadwan/gatekeep/pkg/oauth"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
	"github.com/aussiebroadwan/gatekeep/pkg/tokenstore"
	"github.com/stretchr/testify/require"
)

// countingStore counts Get calls so tests can tell when readers have
// observed the stored token.
type countingStore struct {
	tokenstore.Store
	gets atomic.Int32
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.gets.Add(1)
	return s.Store.Get(ctx, key)
}

// idp is a token endpoint double.
type idp struct {
	t        *testing.T
	srv      *httptest.Server
	grants   atomic.Int32
	revokes  atomic.Int32
	failWith *authsdk.Error
	release  chan struct{}
	rotate   bool

	mu       sync.Mutex
	lastForm map[string]string
}

func newIDP(t *testing.T, opts ...func(*idp)) *idp {
	t.Helper()
	p := &idp{t: t, rotate: true}
	for _, o := range opts {
		o(p)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", p.token)
	mux.HandleFunc("POST /oauth/revoke", p.revoke)
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *idp) record(r *http.Request) map[string]string {
	_ = r.ParseForm()
	form := map[string]string{}
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}
	p.mu.Lock()
	p.lastForm = form
	p.mu.Unlock()
	return form
}

func (p *idp) form() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastForm
}

func (p *idp) token(w http.ResponseWriter, r *http.Request) {
	n := p.grants.Add(1)
	form := p.record(r)
	if p.release != nil {
		<-p.release
	}
	if p.failWith != nil {
		p.failWith.WriteError(w)
		return
	}
	if form["grant_type"] == authsdk.GrantPassword && form["password"] != "hunter2" {
		authsdk.ErrInvalidGrant.WriteError(w)
		return
	}

	resp := map[string]any{
		"access_token": fmt.Sprintf("at-%d", n),
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if p.rotate || form["grant_type"] == authsdk.GrantPassword {
		resp["refresh_token"] = fmt.Sprintf("rt-%d", n)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (p *idp) revoke(w http.ResponseWriter, r *http.Request) {
	p.revokes.Add(1)
	p.record(r)
	if p.failWith != nil {
		p.failWith.WriteError(w)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (p *idp) client(tokens *oauth.TokenManager) *oauth.Client {
	sdk := authsdk.NewSDKClient(p.srv.URL, authsdk.WithLogger(slogx.Discard()))
	return oauth.NewClient(sdk, tokens, oauth.WithClientLogger(slogx.Discard()))
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newIDP(t)
	c := p.client(oauth.NewTokenManager(nil))

	resp, err := c.Authenticate(ctx, map[string]any{"username": "ann", "password": "hunter2"}, nil)
	require.NoError(t, err)
	require.Equal(t, "at-1", resp.AccessToken)
	require.Contains(t, string(resp.Raw), `"expires_in":3600`)
	require.Equal(t, map[string]string{"grant_type": "password", "username": "ann", "password": "hunter2"}, p.form())

	at, err := c.Tokens().AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "at-1", at)

	_, err = c.Authenticate(ctx, map[string]any{"username": "ann", "password": "wrong"}, nil)
	var apiErr *authsdk.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, authsdk.ErrInvalidGrant.Message, apiErr.Message)

	at, err = c.Tokens().AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "at-1", at, "a failed login leaves the old token alone")
}

func TestAuthenticateGrantOverride(t *testing.T) {
	t.Parallel()

	p := newIDP(t)
	c := p.client(oauth.NewTokenManager(nil))

	_, err := c.Authenticate(context.Background(), map[string]any{"grant_type": "client_credentials"}, nil)
	require.NoError(t, err)
	require.Equal(t, "client_credentials", p.form()["grant_type"])
}

func TestConcurrentAccessTokenRefreshesOnce(t *testing.T) {
	t.Parallel()

	const callers = 16
	ctx := context.Background()
	release := make(chan struct{})
	p := newIDP(t, func(p *idp) { p.release = release })
	var once sync.Once
	open := func() { once.Do(func() { close(p.release) }) }
	t.Cleanup(open)

	store := &countingStore{Store: tokenstore.NewMemory()}
	tokens := oauth.NewTokenManager(nil, oauth.WithStore(store))
	p.client(tokens)

	// expires_in 1 expires at the truncated issue second, i.e. immediately.
	require.NoError(t, tokens.SetTokenResponse(ctx, &authsdk.TokenResponse{
		AccessToken: "stale", RefreshToken: "rt-0", TokenType: "Bearer", ExpiresIn: 1,
	}))
	store.gets.Store(0)

	results := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = tokens.AccessToken(ctx)
		}()
	}

	// Every caller has read the stale token, plus the flight's own read.
	require.Eventually(t, func() bool { return store.gets.Load() >= callers+1 }, 5*time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	open()
	wg.Wait()

	require.EqualValues(t, 1, p.grants.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		require.Equal(t, "at-1", results[i])
	}
	require.Equal(t, "refresh_token", p.form()["grant_type"])
	require.Equal(t, "rt-0", p.form()["refresh_token"])
}

// laggingStore hands its first reader the record as it was on entry, but
// only after release is closed, so that reader's view goes stale while
// others move on.
type laggingStore struct {
	tokenstore.Store
	lagged  atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (s *laggingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.lagged.CompareAndSwap(false, true) {
		return s.Store.Get(ctx, key)
	}
	b, err := s.Store.Get(ctx, key)
	close(s.entered)
	<-s.release
	return b, err
}

func TestLateReaderOfExpiredTokenDoesNotRefreshAgain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newIDP(t)

	mem := tokenstore.NewMemory()
	seed := oauth.NewTokenManager(nil, oauth.WithStore(mem))
	require.NoError(t, seed.SetTokenResponse(ctx, &authsdk.TokenResponse{
		AccessToken: "stale", RefreshToken: "rt-0", TokenType: "Bearer", ExpiresIn: 1,
	}))

	store := &laggingStore{Store: mem, entered: make(chan struct{}), release: make(chan struct{})}
	tokens := oauth.NewTokenManager(nil, oauth.WithStore(store))
	p.client(tokens)

	slow := make(chan string, 1)
	go func() {
		at, err := tokens.AccessToken(ctx)
		if err != nil {
			at = err.Error()
		}
		slow <- at
	}()
	<-store.entered

	fast, err := tokens.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "at-1", fast)

	close(store.release)
	require.Equal(t, "at-1", <-slow)
	require.EqualValues(t, 1, p.grants.Load())
}

func TestRefreshAfterAutomaticRefreshStillCallsServer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newIDP(t)
	tokens := oauth.NewTokenManager(nil)
	c := p.client(tokens)
	require.NoError(t, tokens.SetTokenResponse(ctx, &authsdk.TokenResponse{
		AccessToken: "stale", RefreshToken: "rt-0", TokenType: "Bearer", ExpiresIn: 1,
	}))

	at, err := tokens.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "at-1", at)

	resp, err := c.Refresh(ctx, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "at-2", resp.AccessToken)
	require.EqualValues(t, 2, p.grants.Load())
}

func TestRefreshFailureRemovesToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newIDP(t, func(p *idp) { p.failWith = authsdk.ErrInvalidRefresh })
	tokens := oauth.NewTokenManager(nil)
	c := p.client(tokens)

	require.NoError(t, tokens.SetTokenResponse(ctx, &authsdk.TokenResponse{
		AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer", ExpiresIn: 1,
	}))

	_, err := c.Refresh(ctx, nil, nil)
	require.Equal(t, http.StatusBadRequest, authsdk.StatusCode(err))

	_, err = tokens.Token(ctx)
	require.ErrorIs(t, err, oauth.ErrNoToken)
}

func TestRefreshWithoutRefreshTokenRemovesToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newIDP(t)
	tokens := oauth.NewTokenManager(nil)
	c := p.client(tokens)

	require.NoError(t, tokens.SetTokenResponse(ctx, &authsdk.TokenResponse{AccessToken: "at", TokenType: "Bearer", ExpiresIn: 1}))

	_, err := tokens.AccessToken(ctx)
	require.ErrorIs(t, err, oauth.ErrNoToken)
	require.Zero(t, p.grants.Load())

	_, err = tokens.Token(ctx)
	require.ErrorIs(t, err, oauth.ErrNoToken)

	// The flight is cleared, so a later refresh runs again.
	_, err = c.Refresh(ctx, nil, nil)
	require.ErrorIs(t, err, oauth.ErrNoToken)
}

func TestRefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newIDP(t, func(p *idp) { p.rotate = false })
	tokens := oauth.NewTokenManager(nil)
	c := p.client(tokens)

	require.NoError(t, tokens.SetTokenResponse(ctx, &authsdk.TokenResponse{
		AccessToken: "at", RefreshToken: "long-lived", TokenType: "Bearer", ExpiresIn: 1,
	}))

	resp, err := c.Refresh(ctx, map[string]any{"scope": "read"}, nil)
	require.NoError(t, err)
	require.Equal(t, "long-lived", resp.RefreshToken)
	require.Equal(t, "read", p.form()["scope"])

	rt, err := tokens.RefreshToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "long-lived", rt)
}

func TestRefreshOutlivesCancelledWaiter(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	p := newIDP(t, func(p *idp) { p.release = release })
	var once sync.Once
	open := func() { once.Do(func() { close(p.release) }) }
	t.Cleanup(open)

	tokens := oauth.NewTokenManager(nil)
	c := p.client(tokens)
	require.NoError(t, tokens.SetTokenResponse(context.Background(), &authsdk.TokenResponse{
		AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer", ExpiresIn: 1,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Refresh(ctx, nil, nil)
		done <- err
	}()

	require.Eventually(t, func() bool { return p.grants.Load() == 1 }, 5*time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	open()
	require.Eventually(t, func() bool {
		tok, err := tokens.Token(context.Background())
		return err == nil && tok.AccessToken == "at-1"
	}, 5*time.Second, time.Millisecond)
}

func TestRevoke(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("prefers refresh token", func(t *testing.T) {
		p := newIDP(t)
		tokens := oauth.NewTokenManager(nil)
		c := p.client(tokens)
		require.NoError(t, tokens.SetTokenResponse(ctx, &authsdk.TokenResponse{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer"}))

		require.NoError(t, c.Revoke(ctx))
		require.Equal(t, map[string]string{"token": "rt", "token_type_hint": "refresh_token"}, p.form())
		_, err := tokens.Token(ctx)
		require.ErrorIs(t, err, oauth.ErrNoToken)
	})

	t.Run("falls back to access token", func(t *testing.T) {
		p := newIDP(t)
		tokens := oauth.NewTokenManager(nil)
		c := p.client(tokens)
		require.NoError(t, tokens.SetTokenResponse(ctx, &authsdk.TokenResponse{AccessToken: "at", TokenType: "Bearer"}))

		require.NoError(t, c.Revoke(ctx))
		require.Equal(t, map[string]string{"token": "at", "token_type_hint": "access_token"}, p.form())
	})

	t.Run("server failure still clears", func(t *testing.T) {
		p := newIDP(t, func(p *idp) { p.failWith = authsdk.ErrServerError })
		tokens := oauth.NewTokenManager(nil)
		c := p.client(tokens)
		require.NoError(t, tokens.SetTokenResponse(ctx, &authsdk.TokenResponse{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer"}))

		err := c.Revoke(ctx)
		require.Equal(t, http.StatusInternalServerError, authsdk.StatusCode(err))
		_, err = tokens.Token(ctx)
		require.ErrorIs(t, err, oauth.ErrNoToken)
	})

	t.Run("network failure still clears", func(t *testing.T) {
		p := newIDP(t)
		tokens := oauth.NewTokenManager(nil)
		c := p.client(tokens)
		require.NoError(t, tokens.SetTokenResponse(ctx, &authsdk.TokenResponse{AccessToken: "at", TokenType: "Bearer"}))
		p.srv.Close()

		err := c.Revoke(ctx)
		var apiErr *authsdk.Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, authsdk.ErrorCodeNetwork, apiErr.Code)
		_, err = tokens.Token(ctx)
		require.ErrorIs(t, err, oauth.ErrNoToken)
	})

	t.Run("unreadable record is removed", func(t *testing.T) {
		p := newIDP(t)
		mem := tokenstore.NewMemory()
		require.NoError(t, mem.Put(ctx, oauth.DefaultStorageKey, []byte("{not json")))
		c := p.client(oauth.NewTokenManager(nil, oauth.WithStore(mem)))

		require.Error(t, c.Revoke(ctx))
		_, err := mem.Get(ctx, oauth.DefaultStorageKey)
		require.ErrorIs(t, err, tokenstore.ErrNotFound)
		require.Zero(t, p.revokes.Load())
	})

	t.Run("nothing to revoke", func(t *testing.T) {
		p := newIDP(t)
		c := p.client(oauth.NewTokenManager(nil))
		require.True(t, errors.Is(c.Revoke(ctx), oauth.ErrNoToken))
		require.Zero(t, p.revokes.Load())
	})
}
