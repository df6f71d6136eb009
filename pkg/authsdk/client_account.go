package authsdk

import (
	"context"
	"errors"
	"net/url"
)

var ErrMissingToken = errors.New("authsdk: sptoken is required")

// Register creates an account and returns it. Whether the account is
// ENABLED or UNVERIFIED depends on the provider's verification policy.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	resp, err := c.postJSON(ctx, c.Endpoints.Register, req, nil)
	if err != nil {
		return nil, err
	}
	return decodeAccount(resp.Body)
}

// VerifyEmail redeems an email verification token.
func (c *SDKClient) VerifyEmail(ctx context.Context, sptoken string) error {
	if sptoken == "" {
		return ErrMissingToken
	}
	_, err := c.get(ctx, c.Endpoints.EmailVerification, url.Values{"sptoken": {sptoken}})
	return err
}

// ResendVerificationEmail asks for a fresh verification email. login is a
// username or email. Providers answer 200 whether or not it exists.
func (c *SDKClient) ResendVerificationEmail(ctx context.Context, login string) error {
	_, err := c.postJSON(ctx, c.Endpoints.EmailVerification, map[string]string{"login": login}, nil)
	return err
}

// PasswordResetRequest starts a reset for email.
func (c *SDKClient) PasswordResetRequest(ctx context.Context, email string) error {
	_, err := c.postJSON(ctx, c.Endpoints.ForgotPassword, map[string]string{"email": email}, nil)
	return err
}

// VerifyPasswordResetToken checks that a reset token is still good without
// consuming it.
func (c *SDKClient) VerifyPasswordResetToken(ctx context.Context, sptoken string) error {
	if sptoken == "" {
		return ErrMissingToken
	}
	_, err := c.get(ctx, c.Endpoints.ChangePassword, url.Values{"sptoken": {sptoken}})
	return err
}

// ResetPassword consumes the reset token and sets password.
func (c *SDKClient) ResetPassword(ctx context.Context, sptoken, password string) error {
	if sptoken == "" {
		return ErrMissingToken
	}
	_, err := c.postJSON(ctx, c.Endpoints.ChangePassword, map[string]string{
		"sptoken":  sptoken,
		"password": password,
	}, nil)
	return err
}
