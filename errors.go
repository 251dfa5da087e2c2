package psyclient

import (
	"errors"
	"strconv"
)

var (
	// ErrInvalidCredentials is an exported constant or variable used by the API client.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRegistrationRejected is an exported constant or variable used by the API client.
	ErrRegistrationRejected = errors.New("registration rejected")
	// ErrNotAuthenticated is an exported constant or variable used by the API client.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrUnauthorized is an exported constant or variable used by the API client.
	ErrUnauthorized = errors.New("unauthorized after retry")
	// ErrRefreshInvalid is an exported constant or variable used by the API client.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrSessionExpired is an exported constant or variable used by the API client.
	ErrSessionExpired = errors.New("session expired")
	// ErrStatusCheckFailed is an exported constant or variable used by the API client.
	ErrStatusCheckFailed = errors.New("auth status check failed")
	// ErrPasswordResetRejected is an exported constant or variable used by the API client.
	ErrPasswordResetRejected = errors.New("password reset rejected")
	// ErrClientNotReady is an exported constant or variable used by the API client.
	ErrClientNotReady = errors.New("client not initialized")
)

// APIError carries the HTTP status and the backend's {"detail": ...} payload
// for a non-2xx response. It wraps the sentinel matching its status class so
// callers can branch with [errors.Is].
type APIError struct {
	StatusCode int
	Detail     string
	wrapped    error
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return "request failed with status " + strconv.Itoa(e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.wrapped }
