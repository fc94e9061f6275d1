package federation

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

const errorCodeInvalidGrant = "invalid_grant"

// classifyRefreshError maps a refresh failure onto ErrRevoked or ErrTransient.
// Only an explicit invalid_grant from the token endpoint counts as revoked;
// network errors, timeouts and every other answer are transient.
func classifyRefreshError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorCode == errorCodeInvalidGrant ||
			(re.ErrorCode == "" && bytes.Contains(re.Body, []byte(errorCodeInvalidGrant))) {
			return fmt.Errorf("%w: %s", ErrRevoked, errorCodeInvalidGrant)
		}
	}

	return fmt.Errorf("%w: %s", ErrTransient, describeError(err))
}
