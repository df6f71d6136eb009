package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Login posts credentials to the cookie session endpoint. The session cookie
// lands in HTTPClient's jar; the raw reply is returned for inspection.
func (c *SDKClient) Login(ctx context.Context, data map[string]any, headers http.Header) (*Response, error) {
	return c.postForm(ctx, c.Endpoints.Login, data, headers)
}

// Logout ends the cookie session.
func (c *SDKClient) Logout(ctx context.Context) error {
	_, err := c.postForm(ctx, c.Endpoints.Logout, nil, nil)
	return err
}

// CurrentUser fetches the account behind the current credentials. An
// anonymous caller gets an *Error with StatusCode 401.
func (c *SDKClient) CurrentUser(ctx context.Context) (*Account, error) {
	resp, err := c.get(ctx, c.Endpoints.CurrentUser, nil)
	if err != nil {
		return nil, err
	}
	return decodeAccount(resp.Body)
}

// decodeAccount accepts {"account": {...}} or the account itself.
func decodeAccount(body []byte) (*Account, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("authsdk: decode account: %w", err)
	}

	inner := body
	if raw, ok := probe["account"]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		inner = raw
	}

	var acc Account
	if err := json.Unmarshal(inner, &acc); err != nil {
		return nil, fmt.Errorf("authsdk: decode account: %w", err)
	}
	return &acc, nil
}
