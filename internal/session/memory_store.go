package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"go.pilab.hu/focusboard/domain"
)

// MemoryStore keeps sessions in process memory. Expired sessions are evicted
// by ttlcache.
type MemoryStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, []byte]
	now   func() time.Time
}

// NewMemoryStore creates a MemoryStore and starts its cleanup loop.
func NewMemoryStore() *MemoryStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)

	go cache.Start()

	return &MemoryStore{cache: cache, now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	item := m.cache.Get(id)
	if item == nil {
		return nil, domain.ErrSessionNotFound
	}
	return decode(item.Value())
}

func (m *MemoryStore) Save(_ context.Context, sess *domain.Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session: missing id")
	}

	data, err := encode(sess)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ttl := sess.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		m.cache.Delete(sess.ID)
		return nil
	}
	m.cache.Set(sess.ID, data, ttl)

	return nil
}

// Delete removes the session. It shares the lock with ConsumeState so a state
// consumption in flight cannot write a deleted session back.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Delete(id)
	return nil
}

func (m *MemoryStore) ConsumeState(_ context.Context, id string, provider domain.Provider) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.cache.Get(id)
	if item == nil {
		return "", nil
	}

	sess, err := decode(item.Value())
	if err != nil {
		return "", err
	}

	ttl := item.ExpiresAt().Sub(m.now())
	state := sess.OAuthStates[provider]
	if state == "" || ttl <= 0 {
		return "", nil
	}
	delete(sess.OAuthStates, provider)

	data, err := encode(sess)
	if err != nil {
		return "", err
	}
	m.cache.Set(id, data, ttl)

	return state, nil
}

// Close stops the cleanup goroutine.
func (m *MemoryStore) Close() error {
	m.cache.Stop()
	return nil
}
