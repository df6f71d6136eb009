package tokenstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
)

// CookieStore carries each record as a base64url cookie in a jar, scoped to
// one URL. Sharing the jar with the HTTP client puts the record on every
// request to that origin, which is how same-domain cookie sessions travel.
type CookieStore struct {
	jar http.CookieJar
	u   *url.URL
}

var _ Store = (*CookieStore)(nil)

func NewCookie(jar http.CookieJar, rawURL string) (*CookieStore, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: cookie url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("tokenstore: cookie url %q must be absolute", rawURL)
	}
	return &CookieStore{jar: jar, u: u}, nil
}

func (c *CookieStore) Put(_ context.Context, key string, value []byte) error {
	c.jar.SetCookies(c.u, []*http.Cookie{{
		Name:     key,
		Value:    base64.RawURLEncoding.EncodeToString(value),
		Path:     "/",
		Secure:   c.u.Scheme == "https",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}})
	return nil
}

func (c *CookieStore) Get(_ context.Context, key string) ([]byte, error) {
	for _, ck := range c.jar.Cookies(c.u) {
		if ck.Name != key {
			continue
		}
		v, err := base64.RawURLEncoding.DecodeString(ck.Value)
		if err != nil {
			return nil, fmt.Errorf("tokenstore: cookie %q: %w", key, err)
		}
		return v, nil
	}
	return nil, ErrNotFound
}

func (c *CookieStore) Remove(_ context.Context, key string) error {
	c.jar.SetCookies(c.u, []*http.Cookie{{Name: key, Path: "/", MaxAge: -1}})
	return nil
}
