package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/focusboard/cache"
)

func TestMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryTokenStore()
	defer store.Close()

	t.Run("missing entry", func(t *testing.T) {
		_, err := store.Get(ctx, "u1", "google")
		assert.ErrorIs(t, err, cache.ErrTokenNotFound)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, &cache.TokenEntry{UserID: "u1", Provider: "google", Envelope: "a:b"}, time.Hour))
		require.NoError(t, store.Set(ctx, &cache.TokenEntry{UserID: "u1", Provider: "google", Envelope: "c:d"}, time.Hour))

		entry, err := store.Get(ctx, "u1", "google")
		require.NoError(t, err)
		assert.Equal(t, "c:d", entry.Envelope)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "u1", "google"))
		require.NoError(t, store.Delete(ctx, "u1", "google"))

		_, err := store.Get(ctx, "u1", "google")
		assert.ErrorIs(t, err, cache.ErrTokenNotFound)
	})

	t.Run("delete user leaves other users", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, &cache.TokenEntry{UserID: "u1", Provider: "google", Envelope: "1"}, 0))
		require.NoError(t, store.Set(ctx, &cache.TokenEntry{UserID: "u1", Provider: "todoist", Envelope: "2"}, 0))
		require.NoError(t, store.Set(ctx, &cache.TokenEntry{UserID: "u10", Provider: "todoist", Envelope: "3"}, 0))

		require.NoError(t, store.DeleteUser(ctx, "u1"))

		_, err := store.Get(ctx, "u1", "google")
		assert.ErrorIs(t, err, cache.ErrTokenNotFound)
		_, err = store.Get(ctx, "u1", "todoist")
		assert.ErrorIs(t, err, cache.ErrTokenNotFound)

		entry, err := store.Get(ctx, "u10", "todoist")
		require.NoError(t, err)
		assert.Equal(t, "3", entry.Envelope)
		assert.Equal(t, 1, store.Count(ctx))
	})

	t.Run("entries expire", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, &cache.TokenEntry{UserID: "u2", Provider: "google", Envelope: "x"}, 20*time.Millisecond))
		time.Sleep(50 * time.Millisecond)

		_, err := store.Get(ctx, "u2", "google")
		assert.ErrorIs(t, err, cache.ErrTokenNotFound)
	})
}

func TestFingerprint(t *testing.T) {
	assert.Empty(t, cache.Fingerprint(""))
	assert.Len(t, cache.Fingerprint("state"), 12)
	assert.Equal(t, cache.Fingerprint("state"), cache.Fingerprint("state"))
	assert.NotEqual(t, cache.Fingerprint("state-a"), cache.Fingerprint("state-b"))
}
