//go:build e2e

package devidp_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/guard"
	"github.com/aussiebroadwan/gatekeep/pkg/session"
	"github.com/stretchr/testify/require"
)

func TestHealthAndKeys(t *testing.T) {
	baseURL := setupContainer(t, nil)
	client := authsdk.NewSDKClient(baseURL)

	live, err := client.GetLiveness(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	ready, err := client.GetReadiness(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Checks["database"])

	jwks, err := client.GetJWKS(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, jwks.Keys)
	require.Equal(t, "EdDSA", jwks.Keys[0].Alg)
}

func TestSeededAdminCookieSession(t *testing.T) {
	baseURL := setupContainer(t, nil)
	g := newClient(t, baseURL, false)
	ctx := t.Context()

	res, err := g.Session.Authenticate(ctx, session.Credentials{Username: adminUsername, Password: adminPassword})
	require.NoError(t, err)
	require.NotNil(t, res.Response)
	require.True(t, res.User.InGroup(adminGroup))

	require.NoError(t, g.Session.EndSession(ctx))
	_, err = g.API.CurrentUser(ctx)
	require.Equal(t, http.StatusUnauthorized, authsdk.StatusCode(err))
}

func TestCrossDomainGuardedNavigation(t *testing.T) {
	baseURL := setupContainer(t, nil)
	g := newClient(t, baseURL, true)
	ctx := t.Context()

	var navs []guard.Target
	gd := g.EnablePathRouter(guard.NavigatorFunc(func(_ context.Context, to guard.Target) error {
		navs = append(navs, to)
		return nil
	}), guard.Config{Login: &guard.Target{Path: "/login"}})

	admin := guard.Transition{
		To:     guard.Target{Path: "/admin"},
		Policy: guard.Policy{Authorize: &guard.AuthorizeRule{Group: adminGroup}},
	}
	require.Equal(t, guard.Redirect, gd.Check(ctx, admin).Kind)

	res, err := g.Session.Authenticate(ctx, session.Credentials{Username: adminUsername, Password: adminPassword})
	require.NoError(t, err)
	require.NotNil(t, res.Token)
	require.Equal(t, guard.Allow, gd.Check(ctx, admin).Kind)
	require.Contains(t, navs, guard.Target{Path: "/admin"})

	_, err = g.OAuth.Refresh(ctx, nil, nil)
	require.NoError(t, err)

	require.NoError(t, g.Session.EndSession(ctx))
	require.False(t, g.Identity.Current().IsAuthenticated())
}

func TestRegistrationWithVerification(t *testing.T) {
	baseURL := setupContainer(t, map[string]string{"DEVIDP_REQUIRE_EMAIL_VERIFICATION": "true"})
	g := newClient(t, baseURL, false)
	ctx := t.Context()

	acct, err := g.Identity.Register(ctx, authsdk.RegisterRequest{Email: "ann@example.test", Password: "hunter2hunter2"})
	require.NoError(t, err)
	require.Equal(t, authsdk.StatusUnverified, acct.Status)

	_, err = g.Session.Authenticate(ctx, session.Credentials{Username: "ann@example.test", Password: "hunter2hunter2"})
	require.Equal(t, http.StatusForbidden, authsdk.StatusCode(err))

	require.Equal(t, http.StatusNotFound, authsdk.StatusCode(g.Identity.VerifyEmail(ctx, "not-a-token")))
}

func TestLoginRateLimit(t *testing.T) {
	baseURL := setupContainer(t, map[string]string{
		"RATELIMIT_STRICT_REQUESTS": "3",
		"RATELIMIT_STRICT_BURST":    "3",
	})
	g := newClient(t, baseURL, false)
	ctx := t.Context()

	creds := session.Credentials{Username: adminUsername, Password: "wrong"}
	for range 3 {
		_, err := g.Session.Authenticate(ctx, creds)
		require.Equal(t, http.StatusBadRequest, authsdk.StatusCode(err))
	}
	_, err := g.Session.Authenticate(ctx, creds)
	require.Equal(t, http.StatusTooManyRequests, authsdk.StatusCode(err))
}
