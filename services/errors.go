package services

import "errors"

var (
	// ErrNoToken means nothing usable is stored for the key. It is an outcome,
	// not a failure: callers report the provider as not connected.
	ErrNoToken = errors.New("no token stored")
	// ErrReauthRequired means the stored credential was rejected for good and
	// has been removed. The user has to connect the provider again.
	ErrReauthRequired = errors.New("provider re-authentication required")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAppLoginRequired   = errors.New("application login required")
	ErrProviderDenied     = errors.New("provider denied authorization")
	ErrMissingCode        = errors.New("authorization code missing")
)
