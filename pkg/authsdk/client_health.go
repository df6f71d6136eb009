package authsdk

import (
	"context"

	"github.com/aussiebroadwan/gatekeep/pkg/jwtx"
)

// GetLiveness checks that the identity API is up.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness checks that the identity API can serve requests. A degraded
// server answers 503, which surfaces as an *Error.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetJWKS fetches the keys access tokens are signed with.
func (c *SDKClient) GetJWKS(ctx context.Context) (*jwtx.JWKS, error) {
	resp, err := c.get(ctx, "/.well-known/jwks.json", nil)
	if err != nil {
		return nil, err
	}

	var set jwtx.JWKS
	if err := decodeJSON(resp, &set); err != nil {
		return nil, err
	}
	return &set, nil
}
