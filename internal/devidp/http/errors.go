package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/gatekeep/internal/devidp/service"
	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
)

// writeServiceError maps service errors onto the wire errors the SDK
// understands. Anything unexpected is logged and becomes a 500.
func writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		authsdk.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrAccountDisabled):
		authsdk.ErrAccountDisabled.WriteError(w)
	case errors.Is(err, service.ErrAccountExists):
		authsdk.ErrAccountExists.WriteError(w)
	case errors.Is(err, service.ErrInvalidRefresh):
		authsdk.ErrInvalidRefresh.WriteError(w)
	case errors.Is(err, service.ErrInvalidSPToken):
		authsdk.ErrInvalidSPToken.WriteError(w)
	case errors.Is(err, service.ErrNoSession):
		authsdk.ErrUnauthenticated.WriteError(w)
	case errors.Is(err, service.ErrInvalidRequest):
		// the service message says which field was wrong
		authsdk.NewError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, err.Error()).WriteError(w)
	default:
		slogx.FromContext(ctx).Error(op+" failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
