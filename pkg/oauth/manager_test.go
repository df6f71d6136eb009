package oauth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/oauth"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
	"github.com/aussiebroadwan/gatekeep/pkg/tokenstore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newManager(c *clock) *oauth.TokenManager {
	return oauth.NewTokenManager(nil, oauth.WithClock(c.Now), oauth.WithManagerLogger(slogx.Discard()))
}

func TestExpiryIsComputedAtWriteTime(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	issued := time.Date(2026, 1, 1, 10, 0, 0, 700_000_000, time.UTC)
	c := newClock(issued)
	m := newManager(c)

	var refreshes atomic.Int32
	m.SetRefresher(func(ctx context.Context, _ string) error {
		refreshes.Add(1)
		return m.SetTokenResponse(ctx, &authsdk.TokenResponse{
			AccessToken: "at-2", RefreshToken: "rt-2", TokenType: "Bearer", ExpiresIn: 3600,
		})
	})

	require.NoError(t, m.SetTokenResponse(ctx, &authsdk.TokenResponse{
		AccessToken: "at-1", RefreshToken: "rt-1", TokenType: "Bearer", ExpiresIn: 3600,
	}))

	tok, err := m.Token(ctx)
	require.NoError(t, err)
	want := time.Date(2026, 1, 1, 10, 59, 59, 0, time.UTC)
	require.True(t, tok.Expiry.Equal(want), "expiry %s", tok.Expiry)

	at, err := m.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "at-1", at)

	c.Set(want.Add(-time.Nanosecond))
	at, err = m.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "at-1", at)
	require.Zero(t, refreshes.Load())

	c.Set(want)
	at, err = m.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "at-2", at)
	require.EqualValues(t, 1, refreshes.Load())

	at, err = m.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "at-2", at)
	require.EqualValues(t, 1, refreshes.Load())
}

func TestExpiryFallsBackToJWTExp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	jwtStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	m := newManager(newClock(exp.Add(-time.Hour)))
	require.NoError(t, m.SetTokenResponse(ctx, &authsdk.TokenResponse{AccessToken: jwtStr, TokenType: "Bearer"}))

	tok, err := m.Token(ctx)
	require.NoError(t, err)
	require.True(t, tok.Expiry.Equal(exp.Add(-time.Second)))
}

func TestOpaqueTokenWithoutLifetimeNeverExpires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	m := newManager(c)
	require.NoError(t, m.SetTokenResponse(ctx, &authsdk.TokenResponse{AccessToken: "opaque", TokenType: "Bearer"}))

	c.Set(c.Now().AddDate(10, 0, 0))
	at, err := m.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "opaque", at)
}

func TestAbsentValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newManager(newClock(time.Now()))

	_, err := m.Token(ctx)
	require.ErrorIs(t, err, oauth.ErrNoToken)
	_, err = m.AccessToken(ctx)
	require.ErrorIs(t, err, oauth.ErrNoToken)
	_, err = m.RefreshToken(ctx)
	require.ErrorIs(t, err, oauth.ErrNoToken)
	_, err = m.TokenType(ctx)
	require.ErrorIs(t, err, oauth.ErrNoToken)
	require.NoError(t, m.RemoveToken(ctx))

	require.ErrorIs(t, m.SetTokenResponse(ctx, nil), oauth.ErrNoToken)
	require.ErrorIs(t, m.SetTokenResponse(ctx, &authsdk.TokenResponse{}), oauth.ErrNoToken)

	require.NoError(t, m.SetTokenResponse(ctx, &authsdk.TokenResponse{AccessToken: "at"}))
	_, err = m.AccessToken(ctx)
	require.ErrorIs(t, err, oauth.ErrNoToken, "no token type")
	_, err = m.RefreshToken(ctx)
	require.ErrorIs(t, err, oauth.ErrNoToken)
	_, err = m.TokenType(ctx)
	require.ErrorIs(t, err, oauth.ErrNoToken)
}

func TestExpiredTokenRefreshesOnlyOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	t.Run("no refresher", func(t *testing.T) {
		m := newManager(c)
		require.NoError(t, m.SetTokenResponse(ctx, &authsdk.TokenResponse{AccessToken: "at", TokenType: "Bearer", ExpiresIn: 1}))
		_, err := m.AccessToken(ctx)
		require.ErrorIs(t, err, oauth.ErrTokenExpired)
	})

	t.Run("refresh yields another expired token", func(t *testing.T) {
		m := newManager(c)
		var calls int
		m.SetRefresher(func(ctx context.Context, _ string) error {
			calls++
			return m.SetTokenResponse(ctx, &authsdk.TokenResponse{AccessToken: "still-old", TokenType: "Bearer", ExpiresIn: 1})
		})
		require.NoError(t, m.SetTokenResponse(ctx, &authsdk.TokenResponse{AccessToken: "at", TokenType: "Bearer", ExpiresIn: 1}))

		_, err := m.AccessToken(ctx)
		require.ErrorIs(t, err, oauth.ErrTokenExpired)
		require.Equal(t, 1, calls)
	})

	t.Run("refresh fails", func(t *testing.T) {
		m := newManager(c)
		boom := errors.New("boom")
		m.SetRefresher(func(context.Context, string) error { return boom })
		require.NoError(t, m.SetTokenResponse(ctx, &authsdk.TokenResponse{AccessToken: "at", TokenType: "Bearer", ExpiresIn: 1}))

		_, err := m.AccessToken(ctx)
		require.ErrorIs(t, err, boom)
	})
}

type failingStore struct{ tokenstore.Store }

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func TestStoreFailurePropagates(t *testing.T) {
	t.Parallel()

	m := oauth.NewTokenManager(nil, oauth.WithStore(failingStore{tokenstore.NewMemory()}))
	_, err := m.AccessToken(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, oauth.ErrNoToken)
	require.Contains(t, err.Error(), "disk on fire")
}

func TestSetTokenStoreType(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := tokenstore.NewRegistry()
	other := tokenstore.NewMemory()
	reg.Register("other", other)

	m := oauth.NewTokenManager(reg, oauth.WithStorageKey("my-key"))
	require.NoError(t, m.SetTokenResponse(ctx, &authsdk.TokenResponse{AccessToken: "at", TokenType: "Bearer"}))

	require.NoError(t, m.SetTokenStoreType("other"))
	_, err := m.Token(ctx)
	require.ErrorIs(t, err, oauth.ErrNoToken)

	require.NoError(t, m.SetTokenResponse(ctx, &authsdk.TokenResponse{AccessToken: "at-other", TokenType: "Bearer"}))
	b, err := other.Get(ctx, "my-key")
	require.NoError(t, err)
	require.Contains(t, string(b), "at-other")

	require.ErrorIs(t, m.SetTokenStoreType("nope"), tokenstore.ErrUnknownStore)
}

func TestTokenOAuth2(t *testing.T) {
	t.Parallel()

	exp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := &oauth.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: exp}
	o := tok.OAuth2()
	require.Equal(t, "a", o.AccessToken)
	require.Equal(t, "r", o.RefreshToken)
	require.Equal(t, "Bearer", o.Type())
	require.True(t, o.Expiry.Equal(exp))

	require.False(t, tok.Expired(exp.Add(-time.Second)))
	require.True(t, tok.Expired(exp))
	require.False(t, (&oauth.Token{}).Expired(exp))
}
