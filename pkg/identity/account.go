package identity

import (
	"context"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/events"
)

// Register creates an account and publishes events.Registered with it. It
// does not log the new account in.
func (c *Cache) Register(ctx context.Context, req authsdk.RegisterRequest) (*authsdk.Account, error) {
	acc, err := c.sdk.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	c.bus.Publish(events.Registered, acc, nil)
	return acc, nil
}

// VerifyEmail confirms an account with the emailed sptoken.
func (c *Cache) VerifyEmail(ctx context.Context, sptoken string) error {
	return c.sdk.VerifyEmail(ctx, sptoken)
}

// ResendVerificationEmail asks the server to send the verification mail
// again.
func (c *Cache) ResendVerificationEmail(ctx context.Context, login string) error {
	return c.sdk.ResendVerificationEmail(ctx, login)
}

// PasswordResetRequest starts the password reset flow for email.
func (c *Cache) PasswordResetRequest(ctx context.Context, email string) error {
	return c.sdk.PasswordResetRequest(ctx, email)
}

// VerifyPasswordResetToken checks a reset sptoken without consuming it.
func (c *Cache) VerifyPasswordResetToken(ctx context.Context, sptoken string) error {
	return c.sdk.VerifyPasswordResetToken(ctx, sptoken)
}

// ResetPassword sets a new password using a reset sptoken.
func (c *Cache) ResetPassword(ctx context.Context, sptoken, password string) error {
	return c.sdk.ResetPassword(ctx, sptoken, password)
}
