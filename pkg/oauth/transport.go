package oauth

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/pattern"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
)

// Transport attaches credentials to outgoing requests. Cookies from Jar go
// on every request and Set-Cookie replies are recorded back into it. A
// bearer token is added for URLs matching the allow-list; if none can be
// had the request goes out unmodified and the server decides.
type Transport struct {
	Base   http.RoundTripper
	Jar    http.CookieJar
	tokens *TokenManager

	authorized []pattern.Matcher
	logger     *slog.Logger
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithBase sets the round tripper requests are forwarded to.
func WithBase(rt http.RoundTripper) TransportOption {
	return func(t *Transport) { t.Base = rt }
}

// WithJar attaches cookies from jar to outgoing requests.
func WithJar(jar http.CookieJar) TransportOption {
	return func(t *Transport) { t.Jar = jar }
}

// WithMatchers adds pre-built patterns to the allow-list.
func WithMatchers(ms ...pattern.Matcher) TransportOption {
	return func(t *Transport) { t.authorized = append(t.authorized, ms...) }
}

// WithTransportLogger sets the logger. Nil falls back to slog.Default.
func WithTransportLogger(l *slog.Logger) TransportOption {
	return func(t *Transport) { t.logger = slogx.OrDefault(l) }
}

// NewTransport compiles authorizedURIs as regular expressions ("/re/flags"
// is accepted too) and returns the interceptor.
func NewTransport(tokens *TokenManager, authorizedURIs []string, opts ...TransportOption) (*Transport, error) {
	ms, err := pattern.CompileAll(authorizedURIs)
	if err != nil {
		return nil, fmt.Errorf("oauth: authorized uris: %w", err)
	}
	t := &Transport{
		tokens:     tokens,
		authorized: ms,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// Authorizes reports whether rawURL is on the bearer allow-list.
func (t *Transport) Authorizes(rawURL string) bool {
	return pattern.Any(t.authorized, rawURL)
}

// RoundTrip adds jar cookies, and the bearer header when the URL is
// allow-listed and a token is available.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	out := req.Clone(ctx)

	if t.Jar != nil {
		for _, c := range t.Jar.Cookies(req.URL) {
			out.AddCookie(c)
		}
	}

	if !authsdk.SkipsBearer(ctx) && out.Header.Get("Authorization") == "" && t.Authorizes(req.URL.String()) {
		tok, err := t.tokens.AccessToken(ctx)
		if err != nil {
			t.logger.DebugContext(ctx, "sending request without bearer", "url", req.URL.Redacted(), "error", err)
		} else {
			out.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if t.Jar != nil {
		if rc := resp.Cookies(); len(rc) > 0 {
			t.Jar.SetCookies(req.URL, rc)
		}
	}
	return resp, nil
}
