package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var transferRateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisTransferRateLimiter throttles transfer attempts per user across all
// service instances using a fixed Redis window. A nil limiter or client
// disables limiting, so brokerless local runs are unaffected.
type RedisTransferRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisTransferRateLimiter(client redis.UniversalClient, prefix string) *RedisTransferRateLimiter {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = "sbk:rate_limit"
	}
	return &RedisTransferRateLimiter{
		client: client,
		prefix: strings.TrimSuffix(trimmed, ":"),
	}
}

// Consume counts one attempt for subject and reports the running count within
// the window plus a retry-after hint in seconds. Callers compare count
// against their limit; the limiter itself never rejects.
func (r *RedisTransferRateLimiter) Consume(ctx context.Context, subject string, window time.Duration) (count int, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || window <= 0 || strings.TrimSpace(subject) == "" {
		return 0, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:transfer:%s", r.prefix, strings.TrimSpace(subject))
	raw, err := transferRateLimitScript.Run(ctx, r.client, []string{key}, windowMs).Result()
	if err != nil {
		return 0, 0, err
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis limiter response shape: %T", raw)
	}
	current, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return int(current), 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	retryAfter := int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return int(current), retryAfter, nil
}
