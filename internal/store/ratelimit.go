package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lua script for a fixed admission window. INCR and the first EXPIRE run
// as one unit so a crash can never leave a counter without a TTL.
const windowHitLuaScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return count
`

// RateLimiter counts hits per key inside a fixed window.
type RateLimiter struct {
	redis  *redis.Client
	script *redis.Script
	prefix string
}

// NewRateLimiter creates a limiter writing keys under "lead:rate:".
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{
		redis:  client,
		script: redis.NewScript(windowHitLuaScript),
		prefix: "lead:rate:",
	}
}

// Hit records one attempt for key and reports whether it is within limit.
// The window starts with the first hit and is never extended by later ones.
func (r *RateLimiter) Hit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	seconds := int64(window / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	count, err := r.script.Run(ctx, r.redis, []string{r.prefix + key}, seconds).Int64()
	if err != nil {
		return false, fmt.Errorf("rate window %s: %w", key, err)
	}
	return count <= int64(limit), nil
}

// Count returns the hits recorded so far in the current window.
func (r *RateLimiter) Count(ctx context.Context, key string) (int64, error) {
	n, err := r.redis.Get(ctx, r.prefix+key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
