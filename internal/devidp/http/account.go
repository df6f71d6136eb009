package http

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/aussiebroadwan/gatekeep/internal/devidp/service"
	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
)

const maxRegisterBytes = 1 << 16

// AccountHandler serves registration, email verification and password
// reset. Endpoints that take an email or login answer 200 whether or not an
// account matches.
type AccountHandler struct {
	Accounts *service.AccountService
	Issuer   string
}

// HandleRegister godoc
//
//	@Summary		Register Account
//	@Description	Creates an account. It is ENABLED straight away unless email verification is required, in which case it is UNVERIFIED until the mailed token is redeemed.
//	@Tags			Accounts
//	@Accept			json
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest		true	"The new account"
//	@Success		200		{object}	authsdk.CurrentUserResponse	"The created account"
//	@Failure		400		{object}	map[string]string			"error, message"
//	@Failure		409		{object}	map[string]string			"error, message"
//	@Router			/register [post].
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := readRegisterRequest(r)
	if err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	acct, err := h.Accounts.Register(ctx, service.RegisterInput{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		GivenName:  req.GivenName,
		MiddleName: req.MiddleName,
		Surname:    req.Surname,
		CustomData: req.CustomData,
	})
	if err != nil {
		writeServiceError(ctx, w, "register", err)
		return
	}
	slogx.FromContext(ctx).Info("account registered", "account_id", acct.ID, "status", acct.Status)

	httpx.WriteJSON(w, http.StatusOK, authsdk.CurrentUserResponse{Account: presentAccount(h.Issuer, acct)})
}

// readRegisterRequest decodes a JSON body as is. Form bodies carry the same
// fields flat.
func readRegisterRequest(r *http.Request) (authsdk.RegisterRequest, error) {
	var req authsdk.RegisterRequest

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == httpx.ContentTypeJSON {
		err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRegisterBytes)).Decode(&req)
		return req, err
	}

	values, err := httpx.ReadValues(r)
	if err != nil {
		return req, err
	}
	req.Username = values.Get("username")
	req.Email = values.Get("email")
	req.Password = values.Get("password")
	req.GivenName = values.Get("givenName")
	req.MiddleName = values.Get("middleName")
	req.Surname = values.Get("surname")
	return req, nil
}

// HandleVerify godoc
//
//	@Summary		Verify Email
//	@Description	Redeems an email verification token and enables the account.
//	@Tags			Accounts
//	@Produce		json
//	@Param			sptoken	query	string	true	"Verification token"
//	@Success		200		"Account verified"
//	@Failure		404		{object}	map[string]string	"error, message"
//	@Router			/verify [get].
func (h *AccountHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Accounts.VerifyEmail(ctx, r.URL.Query().Get("sptoken")); err != nil {
		writeServiceError(ctx, w, "verify email", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

// HandleResendVerification godoc
//
//	@Summary		Resend Verification Email
//	@Description	Mails a fresh verification token if login names an unverified account.
//	@Tags			Accounts
//	@Accept			json
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			login	formData	string	true	"Username or email"
//	@Success		200		"Accepted"
//	@Router			/verify [post].
func (h *AccountHandler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	values, err := httpx.ReadValues(r)
	if err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}
	login := values.Get("login")
	if login == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.Accounts.ResendVerification(ctx, login); err != nil {
		writeServiceError(ctx, w, "resend verification", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

// HandleForgot godoc
//
//	@Summary		Request Password Reset
//	@Description	Mails a password reset token if email names an account.
//	@Tags			Accounts
//	@Accept			json
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			email	formData	string	true	"Account email"
//	@Success		200		"Accepted"
//	@Router			/forgot [post].
func (h *AccountHandler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	values, err := httpx.ReadValues(r)
	if err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}
	email := values.Get("email")
	if email == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.Accounts.RequestPasswordReset(ctx, email); err != nil {
		writeServiceError(ctx, w, "password reset request", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

// HandleCheckReset godoc
//
//	@Summary		Check Password Reset Token
//	@Description	Reports whether a reset token can still be used. The token is not consumed.
//	@Tags			Accounts
//	@Produce		json
//	@Param			sptoken	query	string	true	"Reset token"
//	@Success		200		"Token is usable"
//	@Failure		404		{object}	map[string]string	"error, message"
//	@Router			/change [get].
func (h *AccountHandler) HandleCheckReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Accounts.CheckPasswordResetToken(ctx, r.URL.Query().Get("sptoken")); err != nil {
		writeServiceError(ctx, w, "check reset token", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

// HandleReset godoc
//
//	@Summary		Reset Password
//	@Description	Consumes a reset token, sets the new password and ends every session of the account.
//	@Tags			Accounts
//	@Accept			json
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			sptoken		formData	string	true	"Reset token"
//	@Param			password	formData	string	true	"New password"
//	@Success		200			"Password changed"
//	@Failure		400			{object}	map[string]string	"error, message"
//	@Failure		404			{object}	map[string]string	"error, message"
//	@Router			/change [post].
func (h *AccountHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	values, err := httpx.ReadValues(r)
	if err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	if err := h.Accounts.ResetPassword(ctx, values.Get("sptoken"), values.Get("password")); err != nil {
		writeServiceError(ctx, w, "reset password", err)
		return
	}
	slogx.FromContext(ctx).Info("password reset")
	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}
