package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/focusboard/domain"
	"go.pilab.hu/focusboard/internal/session"
)

func TestMemoryStore_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	defer store.Close()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	sess := domain.NewSession("s1", time.Now(), time.Hour)
	sess.UserID = "u1"
	sess.ApplicationLogin = "alice"
	sess.SetIdentity(domain.ProviderTodoist, domain.ProviderIdentity{ProviderUserID: "42", Email: "alice@example.com"})
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.ApplicationLogin)
	id, ok := loaded.Identity(domain.ProviderTodoist)
	require.True(t, ok)
	assert.Equal(t, "42", id.ProviderUserID)

	// Mutating the loaded copy does not leak into the store.
	loaded.ClearIdentity(domain.ProviderTodoist)
	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	_, ok = again.Identity(domain.ProviderTodoist)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "s1"))
	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemoryStore_ExpiredSessionIsNotSaved(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	defer store.Close()

	sess := domain.NewSession("old", time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, store.Save(ctx, sess))

	_, err := store.Get(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemoryStore_ConsumeState(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	defer store.Close()

	sess := domain.NewSession("s1", time.Now(), time.Hour)
	sess.OAuthStates[domain.ProviderGoogle] = "google-state"
	sess.OAuthStates[domain.ProviderTodoist] = "todoist-state"
	require.NoError(t, store.Save(ctx, sess))

	state, err := store.ConsumeState(ctx, "s1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "google-state", state)

	state, err = store.ConsumeState(ctx, "s1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Empty(t, state)

	loaded, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "todoist-state", loaded.OAuthStates[domain.ProviderTodoist])

	state, err = store.ConsumeState(ctx, "unknown", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestMemoryStore_ConsumeStateOnce(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	defer store.Close()

	sess := domain.NewSession("s1", time.Now(), time.Hour)
	sess.OAuthStates[domain.ProviderGoogle] = "only-once"
	require.NoError(t, store.Save(ctx, sess))

	const callers = 20
	var wg sync.WaitGroup
	results := make(chan string, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := store.ConsumeState(ctx, "s1", domain.ProviderGoogle)
			assert.NoError(t, err)
			results <- state
		}()
	}
	wg.Wait()
	close(results)

	won := 0
	for state := range results {
		if state != "" {
			won++
			assert.Equal(t, "only-once", state)
		}
	}
	assert.Equal(t, 1, won)
}

func TestMemoryStore_DeleteWinsOverConsumeState(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	defer store.Close()

	for i := 0; i < 200; i++ {
		sess := domain.NewSession("s1", time.Now(), time.Hour)
		sess.OAuthStates[domain.ProviderGoogle] = "state"
		require.NoError(t, store.Save(ctx, sess))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := store.ConsumeState(ctx, "s1", domain.ProviderGoogle)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Delete(ctx, "s1"))
		}()
		wg.Wait()

		_, err := store.Get(ctx, "s1")
		require.ErrorIs(t, err, domain.ErrSessionNotFound, "iteration %d", i)
	}
}
