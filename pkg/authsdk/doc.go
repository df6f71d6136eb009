/*
Package authsdk is the HTTP plumbing between gatekeep and an identity API.

# Overview

SDKClient knows where every endpoint lives (Endpoints, with an optional
prefix so the API can sit on another origin), how to post qs-style form
bodies, and how to turn a failed response into one uniform *Error. It does
not hold tokens or identity; that is the job of the oauth and identity
packages, which are built on top of it.

	client := authsdk.NewSDKClient("https://app.example.com")

	// Liveness of the identity API
	health, err := client.GetLiveness(ctx)

	// Password grant against the token endpoint
	tok, err := client.TokenGrant(ctx, map[string]any{
		"grant_type": "password",
		"username":   "ann",
		"password":   "hunter2",
	}, nil)

	// Cookie session login on the application's own origin
	resp, err := client.Login(ctx, map[string]any{"username": "ann", "password": "hunter2"}, nil)

# Endpoints

Every path is configurable and resolved against BaseURL, or against
Endpoints.Prefix when it is set:

	POST /login          cookie session login
	POST /logout         cookie session logout
	GET  /me             current account, 401 when anonymous
	POST /oauth/token    password and refresh_token grants
	POST /oauth/revoke   RFC 7009 revocation
	POST /register       create an account
	GET  /verify         verify an email token (?sptoken=)
	POST /verify         resend the verification email
	POST /forgot         start a password reset
	GET  /change         check a reset token (?sptoken=)
	POST /change         complete a password reset

# Errors

Any non-2xx response becomes an *Error carrying the status code, the
machine readable code and a human message pulled from the body (message,
then error_description, then error, then the status text). Network failures
become an *Error with StatusCode 0 that unwraps to the cause.

	var apiErr *authsdk.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		// not logged in
	}

The same type is used by the development identity provider to write its
error responses, so both sides agree on the shape.
*/
package authsdk
