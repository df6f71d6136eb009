package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/gatekeep/internal/devidp/service"
	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
	"github.com/aussiebroadwan/gatekeep/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
)

// RevokeHandler serves the RFC 7009 revocation endpoint. Revoking either
// token of a pair ends the session behind it. Unknown or invalid tokens still
// get 200 OK so the endpoint cannot be used to probe for tokens.
type RevokeHandler struct {
	Tokens   *service.TokenService
	Verifier jwtx.Verifier
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Revocation Endpoint
//	@Description	Revokes a previously issued token (RFC 7009) and ends its session.
//	@Description	Without a hint the token is tried as a refresh token, then as an access token.
//	@Description	The endpoint is idempotent and returns 200 OK even for invalid/unknown tokens.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string	true	"The token to revoke"
//	@Param			token_type_hint	formData	string	false	"Hint about token type"	Enums(access_token, refresh_token)
//	@Success		200				"Token revoked successfully (or was already invalid)"
//	@Failure		400				{object}	map[string]string	"error, error_description"
//	@Failure		415				{object}	map[string]string	"error, error_description"
//	@Header			200				{string}	Cache-Control		"no-store"
//	@Header			200				{string}	Pragma				"no-cache"
//	@Router			/oauth/revoke [post].
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, httpx.ContentTypeForm) {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	token := r.PostForm.Get("token")
	hint := r.PostForm.Get("token_type_hint")
	if token == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	var err error
	switch hint {
	case authsdk.HintAccessToken:
		err = h.revokeAccess(r, token)
	case authsdk.HintRefreshToken:
		err = h.Tokens.RevokeRefreshToken(ctx, token)
	default:
		err = h.Tokens.RevokeRefreshToken(ctx, token)
		if errors.Is(err, service.ErrInvalidRefresh) {
			err = h.revokeAccess(r, token)
		}
	}
	if err != nil {
		log.Warn("revoke failed", "hint", hint, "err", err)
	}

	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

func (h *RevokeHandler) revokeAccess(r *http.Request, token string) error {
	claims, err := h.Verifier.Verify(token)
	if err != nil {
		return err
	}
	if claims.SID == "" {
		return service.ErrNoSession
	}
	return h.Tokens.RevokeSession(r.Context(), claims.SID)
}
