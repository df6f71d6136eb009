package authsdk

import (
	"context"
	"errors"
	"net/http"
)

// TokenGrant posts data to the token endpoint and decodes the reply. The
// caller picks the grant via data["grant_type"]. The request is marked with
// WithoutBearer.
func (c *SDKClient) TokenGrant(ctx context.Context, data map[string]any, headers http.Header) (*TokenResponse, error) {
	resp, err := c.postForm(WithoutBearer(ctx), c.Endpoints.OAuthToken, data, headers)
	if err != nil {
		return nil, err
	}

	var tok TokenResponse
	if err := decodeJSON(resp, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Code:       ErrorCodeInvalidGrant,
			Message:    "token response has no access_token",
			Body:       resp.Body,
		}
	}
	tok.Raw = resp.Body
	return &tok, nil
}

// RevokeToken posts an RFC 7009 revocation. hint may be empty.
func (c *SDKClient) RevokeToken(ctx context.Context, token, hint string) error {
	if token == "" {
		return errors.New("authsdk: revoke: empty token")
	}
	data := map[string]any{"token": token}
	if hint != "" {
		data["token_type_hint"] = hint
	}
	_, err := c.postForm(WithoutBearer(ctx), c.Endpoints.OAuthRevoke, data, nil)
	return err
}
