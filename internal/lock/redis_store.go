package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still carries the caller's
// token, making release atomic with respect to TTL expiry and
// re-acquisition by another holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisStore implements Store on a Redis client using SET NX PX for
// acquisition and a Lua compare-and-delete for release.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed lock store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// SetIfAbsent implements Store.
func (s *RedisStore) SetIfAbsent(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, token, ttl).Result()
}

// DeleteIfMatch implements Store.
func (s *RedisStore) DeleteIfMatch(ctx context.Context, key, token string) (bool, error) {
	deleted, err := releaseScript.Run(ctx, s.client, []string{key}, token).Int64()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}
