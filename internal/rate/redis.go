package rate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementScript caps the counter at ceiling+1 and arms the expiry on the
// first hit, or when a key was left without one.
var incrementScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count > tonumber(ARGV[1]) then
	return count
end
count = redis.call('INCR', KEYS[1])
if count == 1 or redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return count
`)

// RedisStore keeps counters in Redis, shared by every process pointing at the
// same server.
type RedisStore struct {
	redis redis.UniversalClient
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{redis: client}
}

// Increment implements Store with a server-side script.
func (r *RedisStore) Increment(ctx context.Context, key string, ceiling int64, ttl time.Duration) (int64, error) {
	return incrementScript.Run(ctx, r.redis, []string{key}, ceiling, ttl.Milliseconds()).Int64()
}
