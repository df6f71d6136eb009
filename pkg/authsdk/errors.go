package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	// RFC 6749
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeServerError          = "server_error"
	ErrorCodeInvalidToken         = "invalid_token"
	ErrorCodeAccessDenied         = "access_denied"

	// RFC 7009
	ErrorCodeUnsupportedTokenType = "unsupported_token_type"

	// account lifecycle and transport
	ErrorCodeNotFound        = "not_found"
	ErrorCodeConflict        = "conflict"
	ErrorCodeUnauthenticated = "unauthenticated"
	ErrorCodeRateLimited     = "rate_limit_exceeded"
	ErrorCodeNetwork         = "network_error"
)

// ============================================================================
// Error - the one error shape callers see
// ============================================================================

// Error is a failed call to the identity API. StatusCode is 0 when the
// request never got a response, in which case Err holds the cause.
type Error struct {
	StatusCode int    `json:"status"`
	Code       string `json:"error"`
	Message    string `json:"message"`

	// Body is the raw response body, kept for callers that need fields we
	// do not model.
	Body []byte `json:"-"`

	Err error `json:"-"`
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WriteError writes e as JSON. Both the RFC 6749 fields and "message" are
// present so OAuth clients and form clients can each find what they look for.
func (e *Error) WriteError(w http.ResponseWriter) {
	status := e.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	httpx.WriteJSON(w, status, map[string]any{
		"status":            status,
		"error":             e.Code,
		"error_description": e.Message,
		"message":           e.Message,
	})
}

// WriteError writes err as an Error response. Anything that is not already
// an *Error becomes a 500 without leaking its text.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		apiErr.WriteError(w)
		return
	}
	ErrServerError.WriteError(w)
}

// NewError builds an Error from a server response.
func NewError(status int, code, message string) *Error {
	return &Error{StatusCode: status, Code: code, Message: message}
}

// StatusCode returns the HTTP status of an *Error in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	ErrInvalidRequest = &Error{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeInvalidRequest,
		Message:    "the request is malformed or missing required parameters",
	}

	// Deliberately vague so usernames cannot be probed.
	ErrInvalidGrant = &Error{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeInvalidGrant,
		Message:    "invalid username or password",
	}

	ErrInvalidRefresh = &Error{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeInvalidGrant,
		Message:    "refresh token is invalid, expired or revoked",
	}

	ErrUnsupportedGrantType = &Error{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeUnsupportedGrantType,
		Message:    "grant type not supported",
	}

	ErrInvalidToken = &Error{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeInvalidToken,
		Message:    "the access token is missing, invalid, expired or revoked",
	}

	ErrUnauthenticated = &Error{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeUnauthenticated,
		Message:    "not logged in",
	}

	ErrAccountDisabled = &Error{
		StatusCode: http.StatusForbidden,
		Code:       ErrorCodeAccessDenied,
		Message:    "account is not enabled",
	}

	ErrAccountExists = &Error{
		StatusCode: http.StatusConflict,
		Code:       ErrorCodeConflict,
		Message:    "an account with that username or email already exists",
	}

	ErrInvalidSPToken = &Error{
		StatusCode: http.StatusNotFound,
		Code:       ErrorCodeNotFound,
		Message:    "the token is invalid or has expired",
	}

	ErrInvalidContentType = &Error{
		StatusCode: http.StatusUnsupportedMediaType,
		Code:       ErrorCodeInvalidRequest,
		Message:    "content type must be application/x-www-form-urlencoded",
	}

	ErrInvalidFormBody = &Error{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeInvalidRequest,
		Message:    "request body could not be parsed",
	}

	ErrMethodNotAllowed = &Error{
		StatusCode: http.StatusMethodNotAllowed,
		Code:       ErrorCodeInvalidRequest,
		Message:    "method not allowed",
	}

	ErrServerError = &Error{
		StatusCode: http.StatusInternalServerError,
		Code:       ErrorCodeServerError,
		Message:    "internal server error",
	}
)

// ============================================================================
// Transforming responses
// ============================================================================

// TransformError builds the uniform error for a non-2xx response. body is
// the already-read response body and may be empty or not JSON.
func TransformError(resp *http.Response, body []byte) *Error {
	e := &Error{
		StatusCode: resp.StatusCode,
		Body:       body,
	}

	var parsed struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Message          string `json:"message"`
		Code             any    `json:"code"`
	}
	_ = json.Unmarshal(body, &parsed)

	switch {
	case parsed.Message != "":
		e.Message = parsed.Message
	case parsed.ErrorDescription != "":
		e.Message = parsed.ErrorDescription
	case parsed.Error != "":
		e.Message = parsed.Error
	default:
		e.Message = http.StatusText(resp.StatusCode)
		if e.Message == "" {
			e.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
	}

	switch {
	case parsed.Error != "":
		e.Code = parsed.Error
	case parsed.Code != nil:
		e.Code = fmt.Sprint(parsed.Code)
	default:
		e.Code = codeForStatus(resp.StatusCode)
	}
	return e
}

// networkError wraps a failure that produced no response.
func networkError(err error) *Error {
	return &Error{
		Code:    ErrorCodeNetwork,
		Message: err.Error(),
		Err:     err,
	}
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return ErrorCodeUnauthenticated
	case status == http.StatusForbidden:
		return ErrorCodeAccessDenied
	case status == http.StatusNotFound:
		return ErrorCodeNotFound
	case status == http.StatusConflict:
		return ErrorCodeConflict
	case status == http.StatusTooManyRequests:
		return ErrorCodeRateLimited
	case status >= 500:
		return ErrorCodeServerError
	default:
		return ErrorCodeInvalidRequest
	}
}
