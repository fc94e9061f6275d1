package cache

import (
	"context"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryTokenStore implements TokenStore using ttlcache. Entries are local to
// the process.
type MemoryTokenStore struct {
	cache *ttlcache.Cache[string, TokenEntry]
}

// NewMemoryTokenStore creates a new in-memory token store with automatic cleanup.
func NewMemoryTokenStore() *MemoryTokenStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, TokenEntry](),
	)

	// Start the cleanup process
	go cache.Start()

	return &MemoryTokenStore{
		cache: cache,
	}
}

// Set implements TokenStore.Set.
func (s *MemoryTokenStore) Set(_ context.Context, entry *TokenEntry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	s.cache.Set(TokenKey(entry.UserID, entry.Provider), *entry, ttl)

	return nil
}

// Get implements TokenStore.Get.
func (s *MemoryTokenStore) Get(_ context.Context, userID, provider string) (*TokenEntry, error) {
	item := s.cache.Get(TokenKey(userID, provider))
	if item == nil {
		return nil, ErrTokenNotFound
	}

	entry := item.Value()

	return &entry, nil
}

// Delete implements TokenStore.Delete.
func (s *MemoryTokenStore) Delete(_ context.Context, userID, provider string) error {
	s.cache.Delete(TokenKey(userID, provider))

	return nil
}

// DeleteUser implements TokenStore.DeleteUser.
func (s *MemoryTokenStore) DeleteUser(_ context.Context, userID string) error {
	prefix := userID + ":"
	for _, key := range s.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.cache.Delete(key)
		}
	}

	return nil
}

// Count counts the number of entries in the cache.
func (s *MemoryTokenStore) Count(_ context.Context) int {
	return s.cache.Len()
}

// Close stops the cleanup goroutine.
func (s *MemoryTokenStore) Close() error {
	s.cache.Stop()

	return nil
}

var _ TokenStore = (*MemoryTokenStore)(nil)
