package errors

import (
	"errors"
	"net/http"
)

var (
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrInternalServer = errors.New("internal server error")

	// Gate taxonomy. Each stage of the admission pipeline fails with one of these.
	ErrAuthentication = errors.New("authentication failed")
	ErrRateLimited    = errors.New("rate limited")
	ErrImplausible    = errors.New("implausible game session")

	// Ledger failures. ErrLedgerOperator is operator-side (e.g. the signer ran
	// out of gas funds), ErrLedgerTransient is a network-level failure the
	// client may retry with a fresh submission.
	ErrLedger          = errors.New("ledger submission failed")
	ErrLedgerOperator  = errors.New("ledger operator fault")
	ErrLedgerTransient = errors.New("ledger network error")

	ErrConfig = errors.New("server configuration error")

	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

type APIError struct {
	Message string `json:"error"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(message string, code int) *APIError {
	return &APIError{
		Message: message,
		Code:    code,
	}
}

func HTTPStatusFromError(err error) int {
	var apiErr *APIError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrAuthentication),
		errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrImplausible):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
