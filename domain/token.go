package domain

import "time"

// TokenBundle is the decrypted form of a stored provider credential.
type TokenBundle struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenGrant is the result of a code exchange or a refresh.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// String keeps token values out of logs and fmt output.
func (g TokenGrant) String() string {
	return "TokenGrant{[REDACTED]}"
}

// GoString keeps token values out of %#v output.
func (g TokenGrant) GoString() string {
	return g.String()
}
