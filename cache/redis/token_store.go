package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/focusboard/cache"
)

// TokenStore implements cache.TokenStore using Redis hashes, one per
// (user, provider) key, so several server processes can share tokens.
type TokenStore struct {
	client redis.UniversalClient
	prefix string
}

// NewTokenStore creates a new [TokenStore] instance
func NewTokenStore(client redis.UniversalClient, prefix string) *TokenStore {
	return &TokenStore{
		client: client,
		prefix: prefix,
	}
}

func (r *TokenStore) redisKey(userID, provider string) string {
	return fmt.Sprintf("%s:token:%s:%s", r.prefix, userID, provider)
}

// Set implements cache.TokenStore.Set.
func (r *TokenStore) Set(ctx context.Context, entry *cache.TokenEntry, ttl time.Duration) error {
	key := r.redisKey(entry.UserID, entry.Provider)

	fields := map[string]interface{}{
		"user_id":    entry.UserID,
		"provider":   entry.Provider,
		"envelope":   entry.Envelope,
		"updated_at": entry.UpdatedAt.Unix(),
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set token in Redis: %w", err)
	}

	return nil
}

// Get implements cache.TokenStore.Get.
func (r *TokenStore) Get(ctx context.Context, userID, provider string) (*cache.TokenEntry, error) {
	res, err := r.client.HGetAll(ctx, r.redisKey(userID, provider)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get token from Redis: %w", err)
	}

	if len(res) == 0 || res["envelope"] == "" {
		return nil, cache.ErrTokenNotFound
	}

	entry := &cache.TokenEntry{
		UserID:   res["user_id"],
		Provider: res["provider"],
		Envelope: res["envelope"],
	}

	if updatedAt, err := strconv.ParseInt(res["updated_at"], 10, 64); err == nil {
		entry.UpdatedAt = time.Unix(updatedAt, 0)
	}

	return entry, nil
}

// Delete implements cache.TokenStore.Delete.
func (r *TokenStore) Delete(ctx context.Context, userID, provider string) error {
	if err := r.client.Del(ctx, r.redisKey(userID, provider)).Err(); err != nil {
		return fmt.Errorf("failed to delete token from Redis: %w", err)
	}

	return nil
}

// DeleteUser implements cache.TokenStore.DeleteUser.
func (r *TokenStore) DeleteUser(ctx context.Context, userID string) error {
	pattern := r.redisKey(userID, "*")
	var cursor uint64

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan user tokens: %w", err)
		}

		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete user tokens: %w", err)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Count returns the number of token entries in Redis.
func (r *TokenStore) Count(ctx context.Context) int {
	pattern := fmt.Sprintf("%s:token:*", r.prefix)
	var count int
	var cursor uint64

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("failed to scan token keys")
			break
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return count
}

// Ping checks connectivity to Redis.
func (r *TokenStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis token store unreachable: %w", err)
	}
	return nil
}

var _ cache.TokenStore = (*TokenStore)(nil)
