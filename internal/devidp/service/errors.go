package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountDisabled    = errors.New("account_disabled")
	ErrAccountExists      = errors.New("account_exists")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
	ErrInvalidSPToken     = errors.New("invalid_sptoken")
	ErrNoSession          = errors.New("no_session")
)
