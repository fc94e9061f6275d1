package federation

import "errors"

var (
	ErrProviderNotFound      = errors.New("provider not found or not enabled")
	ErrInvalidAuthState      = errors.New("invalid auth state parameter")
	ErrExchangeCodeFailed    = errors.New("failed to exchange authorization code for token")
	ErrFetchUserInfoFailed   = errors.New("failed to fetch user info from provider")
	ErrProviderMisconfigured = errors.New("provider is misconfigured")

	// ErrRevoked means the refresh token is no longer accepted by the provider.
	// The stored credential is useless and the user has to reconnect.
	ErrRevoked = errors.New("refresh token revoked")
	// ErrTransient covers network failures, timeouts and provider-side errors.
	// The stored credential stays and the call may be retried later.
	ErrTransient = errors.New("provider temporarily unavailable")
)
