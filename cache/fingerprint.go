package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short sha256 digest of a secret value. It identifies
// the value in logs without revealing it.
func Fingerprint(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:6])
}
