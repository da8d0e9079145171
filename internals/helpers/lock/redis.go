package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	token  string
}

func NewRedisLocker(client redis.UniversalClient, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "olimpiada:lock:"
	}
	return &RedisLocker{client: client, prefix: prefix, token: uuid.NewString()}
}

func (r *RedisLocker) key(name string) string { return r.prefix + name }

func (r *RedisLocker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(name), r.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire redis lock %q: %w", name, err)
	}
	return ok, nil
}

func (r *RedisLocker) Release(ctx context.Context, name string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key(name)}, r.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release redis lock %q: %w", name, err)
	}
	return nil
}
