package oauth

import (
	"context"
	"log/slog"
	"maps"
	"net/http"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// Client performs authenticate, refresh and revoke against the identity
// provider and keeps the TokenManager in step.
type Client struct {
	sdk    *authsdk.SDKClient
	tokens *TokenManager
	flight singleflight.Group
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the client's logger; nil means slog.Default().
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = slogx.OrDefault(l) }
}

// NewClient returns a client and registers it as tokens' refresher.
func NewClient(sdk *authsdk.SDKClient, tokens *TokenManager, opts ...ClientOption) *Client {
	c := &Client{
		sdk:    sdk,
		tokens: tokens,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	tokens.SetRefresher(c.refreshExpired)
	return c
}

// Tokens returns the manager the client keeps in step.
func (c *Client) Tokens() *TokenManager { return c.tokens }

// Authenticate exchanges credentials with the password grant unless data
// names another, stores the token and returns the reply.
func (c *Client) Authenticate(ctx context.Context, data map[string]any, headers http.Header) (*authsdk.TokenResponse, error) {
	form := map[string]any{"grant_type": authsdk.GrantPassword}
	maps.Copy(form, data)

	resp, err := c.sdk.TokenGrant(ctx, form, headers)
	if err != nil {
		return nil, err
	}
	if err := c.tokens.SetTokenResponse(ctx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Refresh redeems the stored refresh token. Concurrent callers share one
// network call. On failure the stored token is removed.
func (c *Client) Refresh(ctx context.Context, extra map[string]any, headers http.Header) (*authsdk.TokenResponse, error) {
	resp, err := c.share(ctx, func(fctx context.Context) (*authsdk.TokenResponse, error) {
		return c.refresh(fctx, extra, headers)
	})
	if err != nil || resp != nil {
		return resp, err
	}
	// Joined a flight that found the token already refreshed.
	return c.stored(ctx)
}

// stored presents the current record as a token endpoint reply.
func (c *Client) stored(ctx context.Context) (*authsdk.TokenResponse, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	resp := &authsdk.TokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if !tok.Expiry.IsZero() {
		resp.ExpiresIn = int(tok.Expiry.Sub(c.tokens.now()).Seconds())
	}
	return resp, nil
}

// refreshExpired is the TokenManager's refresher. Flights run one at a
// time, so re-reading the record inside one sees every earlier refresh: if
// the stored token is no longer stale, a caller that read the old record
// before that refresh landed gets the current token instead of rotating it
// again.
func (c *Client) refreshExpired(ctx context.Context, stale string) error {
	_, err := c.share(ctx, func(fctx context.Context) (*authsdk.TokenResponse, error) {
		tok, err := c.tokens.Token(fctx)
		if err == nil && (tok.AccessToken != stale || !tok.Expired(c.tokens.now())) {
			c.logger.DebugContext(fctx, "token already refreshed")
			return nil, nil
		}
		return c.refresh(fctx, nil, nil)
	})
	return err
}

// share runs fn as the single in-flight refresh. The flight is not
// cancelled with any one caller's ctx; each caller still stops waiting when
// its own ctx is done.
func (c *Client) share(ctx context.Context, fn func(context.Context) (*authsdk.TokenResponse, error)) (*authsdk.TokenResponse, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(refreshKey, func() (any, error) {
		return fn(flightCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		resp, _ := res.Val.(*authsdk.TokenResponse)
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) refresh(ctx context.Context, extra map[string]any, headers http.Header) (*authsdk.TokenResponse, error) {
	rt, err := c.tokens.RefreshToken(ctx)
	if err != nil {
		c.drop(ctx)
		return nil, err
	}

	data := map[string]any{
		"grant_type":    authsdk.GrantRefreshToken,
		"refresh_token": rt,
	}
	maps.Copy(data, extra)

	resp, err := c.sdk.TokenGrant(ctx, data, headers)
	if err != nil {
		c.logger.InfoContext(ctx, "token refresh failed, ending session", "error", err)
		c.drop(ctx)
		return nil, err
	}

	// Providers that do not rotate refresh tokens omit it from the reply.
	if resp.RefreshToken == "" {
		resp.RefreshToken = rt
	}
	if err := c.tokens.SetTokenResponse(ctx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) drop(ctx context.Context) {
	if err := c.tokens.RemoveToken(ctx); err != nil {
		c.logger.WarnContext(ctx, "failed to remove token", "error", err)
	}
}

// Revoke revokes the refresh token if there is one, else the access token.
// The local token is removed whether or not the server call succeeds.
func (c *Client) Revoke(ctx context.Context) (err error) {
	defer func() {
		if rerr := c.tokens.RemoveToken(context.WithoutCancel(ctx)); rerr != nil && err == nil {
			err = rerr
		}
	}()

	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	token, hint := tok.AccessToken, authsdk.HintAccessToken
	if tok.RefreshToken != "" {
		token, hint = tok.RefreshToken, authsdk.HintRefreshToken
	}
	return c.sdk.RevokeToken(ctx, token, hint)
}
