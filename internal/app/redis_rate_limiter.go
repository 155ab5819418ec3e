package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript counts one hit in the subject's current window and returns
// the running count together with the window's remaining lifetime in
// milliseconds. The expiry is attached on the first hit only.
var fixedWindowScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local remaining = redis.call("PTTL", KEYS[1])
if remaining < 0 then
  remaining = tonumber(ARGV[1])
end
return {hits, remaining}
`)

// RedisTransferRateLimiter caps transfer submissions per subject over a fixed
// window, shared across service instances through Redis.
type RedisTransferRateLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRedisTransferRateLimiter builds a limiter allowing limit submissions per
// window. A non-positive limit or window yields a limiter that allows
// everything.
func NewRedisTransferRateLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisTransferRateLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "banking:rate_limit"
	}
	if window.Milliseconds() < 1000 {
		window = time.Second
	}
	return &RedisTransferRateLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

// Allow counts one submission for subject within scope and reports whether it
// fits the window's budget. Rejections carry a retry-after hint in whole
// seconds, rounded up to at least one.
func (r *RedisTransferRateLimiter) Allow(ctx context.Context, scope, subject string) (allowed bool, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || r.limit <= 0 {
		return true, 0, nil
	}
	scope = strings.TrimSpace(scope)
	subject = strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return true, 0, nil
	}

	windowMs := r.window.Milliseconds()
	key := r.prefix + ":" + scope + ":" + subject
	values, err := fixedWindowScript.Run(ctx, r.client, []string{key}, windowMs).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected limiter script reply: %d values", len(values))
	}

	hits, remainingMs := values[0], values[1]
	if hits <= int64(r.limit) {
		return true, 0, nil
	}
	if remainingMs < 0 {
		remainingMs = windowMs
	}
	retryAfter := int((remainingMs + 999) / 1000)
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter, nil
}
