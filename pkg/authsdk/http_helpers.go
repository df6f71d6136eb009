package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
)

// maxResponseBytes bounds how much of a response body we read.
const maxResponseBytes = 1 << 20

type skipBearerKey struct{}

// WithoutBearer marks ctx so a bearer-injecting Transport leaves requests
// made with it alone. Token endpoint traffic uses it to avoid recursing into
// a refresh.
func WithoutBearer(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipBearerKey{}, true)
}

// SkipsBearer reports whether ctx was marked with WithoutBearer.
func SkipsBearer(ctx context.Context) bool {
	v, _ := ctx.Value(skipBearerKey{}).(bool)
	return v
}

// doRequest performs one call and returns the body of a 2xx reply. Every
// other outcome is an *Error.
func (c *SDKClient) doRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
	contentType string,
	headers http.Header,
) (*Response, error) {
	target := c.URL(path)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("authsdk: build request: %w", err)
	}

	req.Header.Set("Accept", httpx.ContentTypeJSON)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, vs := range headers {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Logger.DebugContext(ctx, "identity api unreachable", "method", method, "url", target, "error", err)
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, networkError(fmt.Errorf("read body: %w", err))
	}

	c.Logger.DebugContext(ctx, "identity api call",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, TransformError(resp, raw)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

// postForm posts data as a qs-style form body.
func (c *SDKClient) postForm(ctx context.Context, path string, data map[string]any, headers http.Header) (*Response, error) {
	return c.doRequest(ctx, http.MethodPost, path,
		strings.NewReader(c.Form.Encode(data)), httpx.ContentTypeForm, headers)
}

func (c *SDKClient) postJSON(ctx context.Context, path string, v any, headers http.Header) (*Response, error) {
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("authsdk: encode body: %w", err)
		}
		body = bytes.NewReader(b)
	}
	return c.doRequest(ctx, http.MethodPost, path, body, httpx.ContentTypeJSON, headers)
}

func (c *SDKClient) get(ctx context.Context, path string, query url.Values) (*Response, error) {
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + query.Encode()
	}
	return c.doRequest(ctx, http.MethodGet, path, nil, "", nil)
}

// decodeJSON unmarshals a successful body. An empty body leaves target
// untouched.
func decodeJSON(resp *Response, target any) error {
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, target); err != nil {
		return fmt.Errorf("authsdk: decode response: %w", err)
	}
	return nil
}
