package authsdk

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeep/pkg/formx"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
)

// SDKClient talks to the identity API. It is safe for concurrent use once
// configured; do not mutate fields after the first request.
type SDKClient struct {
	// BaseURL is the application's own root, e.g. "https://app.example.com".
	BaseURL string

	Endpoints Endpoints

	// HTTPClient carries the cookie jar and the bearer Transport. Requests
	// made through the oauth package are marked so the Transport leaves them
	// alone.
	HTTPClient *http.Client

	// Form controls how nested values are encoded in request bodies.
	Form formx.Options

	Logger *slog.Logger
}

// Option configures an SDKClient.
type Option func(*SDKClient)

// WithEndpoints overrides the endpoint paths.
func WithEndpoints(e Endpoints) Option {
	return func(c *SDKClient) { c.Endpoints = e.withDefaults() }
}

// WithHTTPClient sets the client requests are sent through.
func WithHTTPClient(h *http.Client) Option {
	return func(c *SDKClient) {
		if h != nil {
			c.HTTPClient = h
		}
	}
}

// WithLogger sets the logger. Nil falls back to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *SDKClient) { c.Logger = slogx.OrDefault(l) }
}

// WithFormOptions controls how form bodies are encoded.
func WithFormOptions(o formx.Options) Option {
	return func(c *SDKClient) { c.Form = o }
}

// NewSDKClient returns a client with default endpoints and a 10s timeout.
func NewSDKClient(baseURL string, opts ...Option) *SDKClient {
	c := &SDKClient{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		Endpoints:  DefaultEndpoints(),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// root is what endpoint paths are joined to.
func (c *SDKClient) root() string {
	if c.Endpoints.Prefix != "" {
		return strings.TrimSuffix(c.Endpoints.Prefix, "/")
	}
	return c.BaseURL
}

// URL resolves an endpoint path. Absolute URLs pass through unchanged.
func (c *SDKClient) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.root() + path
}

// SameOrigin reports whether the endpoint path resolves to appOrigin.
// Errors count as a different origin.
func (c *SDKClient) SameOrigin(path, appOrigin string) bool {
	got, err := Origin(c.URL(path))
	if err != nil {
		return false
	}
	want, err := Origin(appOrigin)
	if err != nil {
		return false
	}
	return got == want
}
