package vesync

import "errors"

// Domain errors for the vesync package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, vesync.ErrNotLoggedIn) {
//	    // re-authenticate
//	}
var (
	// ErrMissingCredentials is returned when login is attempted with an
	// empty username or password.
	ErrMissingCredentials = errors.New("vesync: missing credentials")

	// ErrLoginFailed is returned when the cloud rejects the credentials.
	ErrLoginFailed = errors.New("vesync: login failed")

	// ErrNotLoggedIn is returned when an authenticated call is attempted
	// before a successful login.
	ErrNotLoggedIn = errors.New("vesync: not logged in")

	// ErrAPIResponse is returned when the cloud answers with a non-zero
	// error code or a malformed payload.
	ErrAPIResponse = errors.New("vesync: api error")

	// ErrDeviceOffline is returned when an operation requires the device
	// to be reachable and the cloud reports it offline.
	ErrDeviceOffline = errors.New("vesync: device offline")

	// ErrUnsupported is returned when an operation is not available on
	// this device model.
	ErrUnsupported = errors.New("vesync: operation not supported")

	// ErrOutOfRange is returned when a requested value falls outside the
	// range the device accepts.
	ErrOutOfRange = errors.New("vesync: value out of range")
)
