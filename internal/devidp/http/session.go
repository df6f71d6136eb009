package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeep/internal/devidp/domain"
	"github.com/aussiebroadwan/gatekeep/internal/devidp/service"
	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
	"github.com/aussiebroadwan/gatekeep/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
)

// CookieConfig describes the session cookie set by /login.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

func DefaultCookieConfig() CookieConfig {
	return CookieConfig{Name: "gatekeep_session", MaxAge: service.DefaultSessionTTL}
}

func (c CookieConfig) set(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionHandler serves the cookie session endpoints and /me.
type SessionHandler struct {
	Accounts *service.AccountService
	Tokens   *service.TokenService
	Verifier jwtx.Verifier
	Cookie   CookieConfig
	Issuer   string
}

// HandleLogin godoc
//
//	@Summary		Cookie Session Login
//	@Description	Authenticates a username (or email) and password and starts a cookie session.
//	@Description	Social login payloads (providerId) are rejected.
//	@Tags			Session
//	@Accept			application/x-www-form-urlencoded
//	@Accept			json
//	@Produce		json
//	@Param			username	formData	string							true	"Username or email"
//	@Param			password	formData	string							true	"Password"
//	@Success		200			{object}	authsdk.CurrentUserResponse		"The signed in account"
//	@Failure		400			{object}	map[string]string				"error, message"
//	@Failure		403			{object}	map[string]string				"error, message"
//	@Header			200			{string}	Set-Cookie						"HttpOnly session cookie"
//	@Router			/login [post].
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	values, err := httpx.ReadValues(r)
	if err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	if values.Get("providerId") != "" {
		authsdk.NewError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"social login is not supported by this provider").WriteError(w)
		return
	}

	login := values.Get("login")
	if login == "" {
		login = values.Get("username")
	}
	password := values.Get("password")
	if login == "" || password == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	acct, err := h.Accounts.Authenticate(ctx, login, password)
	if err != nil {
		writeServiceError(ctx, w, "login", err)
		return
	}

	cookie, _, err := h.Tokens.StartSession(ctx, acct)
	if err != nil {
		writeServiceError(ctx, w, "start session", err)
		return
	}
	log.Info("cookie session started", "account_id", acct.ID)

	h.Cookie.set(w, cookie)
	httpx.WriteJSON(w, http.StatusOK, authsdk.CurrentUserResponse{Account: presentAccount(h.Issuer, acct)})
}

// HandleLogout godoc
//
//	@Summary		Cookie Session Logout
//	@Description	Ends the cookie session, if any, and clears the cookie. Always succeeds.
//	@Tags			Session
//	@Produce		json
//	@Success		200	"Session ended"
//	@Router			/logout [post].
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if c, err := r.Cookie(h.Cookie.Name); err == nil && c.Value != "" {
		if err := h.Tokens.EndCookieSession(ctx, c.Value); err != nil {
			slogx.FromContext(ctx).Warn("end cookie session failed", "err", err)
		}
	}

	h.Cookie.clear(w)
	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

// HandleMe godoc
//
//	@Summary		Current User
//	@Description	Returns the account behind the session cookie or, failing that, the bearer access token.
//	@Description	A bearer token is only honoured while its session exists.
//	@Tags			Session
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.CurrentUserResponse	"The current account"
//	@Failure		401	{object}	map[string]string			"error, message"
//	@Router			/me [get].
func (h *SessionHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	acct, err := h.resolve(r)
	if err != nil {
		if errors.Is(err, service.ErrAccountDisabled) {
			authsdk.ErrAccountDisabled.WriteError(w)
			return
		}
		if !errors.Is(err, service.ErrNoSession) {
			slogx.FromContext(ctx).Error("resolve current user failed", "err", err)
		}
		authsdk.ErrUnauthenticated.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.CurrentUserResponse{Account: presentAccount(h.Issuer, acct)})
}

// resolve tries the cookie first and the bearer token second.
func (h *SessionHandler) resolve(r *http.Request) (domain.Account, error) {
	ctx := r.Context()

	if c, err := r.Cookie(h.Cookie.Name); err == nil && c.Value != "" {
		acct, err := h.Tokens.CookieAccount(ctx, c.Value)
		if !errors.Is(err, service.ErrNoSession) {
			return acct, err
		}
	}

	raw, ok := bearerToken(r)
	if !ok {
		return domain.Account{}, service.ErrNoSession
	}
	claims, err := h.Verifier.Verify(raw)
	if err != nil {
		slogx.FromContext(ctx).Debug("bearer rejected", "err", err)
		return domain.Account{}, service.ErrNoSession
	}
	return h.Tokens.BearerAccount(ctx, claims)
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// presentAccount renders an account the way the SDK expects to read it.
func presentAccount(issuer string, a domain.Account) authsdk.Account {
	href := strings.TrimSuffix(issuer, "/") + "/accounts/" + a.ID
	groups := make(authsdk.Groups, len(a.Groups))
	for i, g := range a.Groups {
		groups[i] = authsdk.Group{Href: strings.TrimSuffix(issuer, "/") + "/groups/" + g, Name: g}
	}
	return authsdk.Account{
		Href:       href,
		Username:   a.Username,
		Email:      a.Email,
		GivenName:  a.GivenName,
		MiddleName: a.MiddleName,
		Surname:    a.Surname,
		FullName:   a.FullName(),
		Status:     a.Status,
		Groups:     groups,
		CustomData: a.CustomData,
		CreatedAt:  a.CreatedAt,
		ModifiedAt: a.UpdatedAt,
	}
}
