package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go.pilab.hu/focusboard/domain"
)

const consumeRetries = 5

// RedisStore keeps sessions in Redis so several server processes can share them.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix + ":session:",
	}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: failed to get: %w", err)
	}
	return decode(val)
}

func (r *RedisStore) Save(ctx context.Context, sess *domain.Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session: missing id")
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		// If expired, delete session instead of extending
		return r.client.Del(ctx, r.key(sess.ID)).Err()
	}

	data, err := encode(sess)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, r.key(sess.ID), data, ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}

// ConsumeState removes the pending state inside a WATCH transaction, so a
// concurrent consumer either sees the state or loses the race and retries
// against the updated document.
func (r *RedisStore) ConsumeState(ctx context.Context, id string, provider domain.Provider) (string, error) {
	key := r.key(id)
	var state string

	consume := func(tx *redis.Tx) error {
		state = ""

		val, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		sess, err := decode(val)
		if err != nil {
			return err
		}

		pending := sess.OAuthStates[provider]
		if pending == "" {
			return nil
		}
		delete(sess.OAuthStates, provider)

		data, err := encode(sess)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		if err == nil {
			state = pending
		}
		return err
	}

	for i := 0; i < consumeRetries; i++ {
		err := r.client.Watch(ctx, consume, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("session: failed to consume state: %w", err)
		}
		return state, nil
	}

	return "", fmt.Errorf("session: failed to consume state: %w", redis.TxFailedErr)
}
