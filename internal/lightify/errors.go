package lightify

import "errors"

// Domain-specific errors for the cloud API.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAuthRejected is returned when the service refuses the credentials.
	// Retrying with the same credentials will not help.
	ErrAuthRejected = errors.New("lightify: credentials rejected")

	// ErrLoginFailed is returned when a login attempt fails for any other
	// reason (network, server error, unexpected body). It is retryable.
	ErrLoginFailed = errors.New("lightify: login failed")

	// ErrNotAuthenticated is returned by Call when no session token is held.
	ErrNotAuthenticated = errors.New("lightify: not authenticated")

	// ErrUnauthorized is returned when an authenticated call is answered with
	// 401 or 403 and the session could not be renewed.
	ErrUnauthorized = errors.New("lightify: unauthorized")

	// ErrRequestFailed is returned for transport failures and non-2xx responses.
	ErrRequestFailed = errors.New("lightify: request failed")

	// ErrDecode is returned when a response body is not the expected JSON.
	ErrDecode = errors.New("lightify: invalid response body")
)
