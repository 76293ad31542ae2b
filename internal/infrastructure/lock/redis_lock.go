package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 5 * time.Minute

// redisStore defines the operations used by RedisLocker
type redisStore interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// releaseScript deletes the key only while it still holds the caller's owner token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker serialises per-shop work with SETNX and a TTL
type RedisLocker struct {
	client redisStore
	prefix string
}

// NewRedisLocker creates a new redis backed locker
func NewRedisLocker(client redisStore, prefix string) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	return &RedisLocker{client: client, prefix: prefix}, nil
}

// Acquire takes the lock for ttl. The returned release only deletes the key while this owner still holds it.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if key == "" {
		return nil, false, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	key = l.prefix + key
	owner := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, owner).Err(); err != nil {
			return fmt.Errorf("release lock: %w", err)
		}
		return nil
	}
	return release, true, nil
}
