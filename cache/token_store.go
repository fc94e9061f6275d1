package cache

import (
	"context"
	"errors"
	"time"
)

// ErrTokenNotFound is returned when no entry exists for a (user, provider) key.
var ErrTokenNotFound = errors.New("token not found")

// TokenEntry is one stored provider credential. Envelope is the sealed token
// bundle; backends never see plaintext.
type TokenEntry struct {
	UserID    string    `redis:"user_id"`
	Provider  string    `redis:"provider"`
	Envelope  string    `redis:"envelope"`
	UpdatedAt time.Time `redis:"updated_at"`
}

// TokenStore is the backing store for encrypted provider tokens, keyed by
// (userID, provider). Implementations must be safe for concurrent use.
type TokenStore interface {
	// Set overwrites the entry for the key. A non-positive ttl stores the entry
	// without expiry.
	Set(ctx context.Context, entry *TokenEntry, ttl time.Duration) error
	// Get returns ErrTokenNotFound when no entry exists.
	Get(ctx context.Context, userID, provider string) (*TokenEntry, error)
	// Delete is idempotent.
	Delete(ctx context.Context, userID, provider string) error
	// DeleteUser removes every entry of the user.
	DeleteUser(ctx context.Context, userID string) error
	Count(ctx context.Context) int
}

// TokenKey builds the canonical key of an entry.
func TokenKey(userID, provider string) string {
	return userID + ":" + provider
}
