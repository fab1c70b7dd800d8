package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RedisLimiter paces sends per key with a sliding window shared through Redis.
// Uses a sorted set where each member is a unique attempt ID with a timestamp score.
type RedisLimiter struct {
	redisClient *redis.Client
	logger      *zap.Logger
	script      *redis.Script
	limit       int
	window      time.Duration
	poll        time.Duration
}

// Lua script for atomic sliding window rate limiting.
// 1. Remove entries older than the window
// 2. Count remaining entries
// 3. If under the limit, add a new entry and return 1 (allowed)
// 4. If at/over the limit, return 0 (denied)
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, math.floor(window / 1000) + 1)
    return 1
else
    return 0
end
`)

// NewRedisLimiter admits perSecond attempts per key per second. Zero disables pacing.
func NewRedisLimiter(redisClient *redis.Client, perSecond int, logger *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
		limit:       perSecond,
		window:      time.Second,
		poll:        50 * time.Millisecond,
	}
}

func rlKey(key string) string {
	return fmt.Sprintf("rl:%s", key)
}

// Allow reports whether one more attempt fits in the current window.
func (rl *RedisLimiter) Allow(ctx context.Context, key string) bool {
	if rl.limit <= 0 {
		return true
	}

	now := time.Now().UnixMilli()
	result, err := rl.script.Run(ctx, rl.redisClient, []string{rlKey(key)},
		now, rl.window.Milliseconds(), rl.limit, uuid.NewString(),
	).Int64()
	if err != nil {
		// Fail open: pacing must never stop a reminder.
		rl.logger.Error("rate limiter script failed", zap.Error(err), zap.String("key", key))
		return true
	}
	return result == 1
}

// Wait blocks until Allow admits the attempt or ctx ends.
func (rl *RedisLimiter) Wait(ctx context.Context, key string) error {
	for !rl.Allow(ctx, key) {
		t := time.NewTimer(rl.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// LocalLimiter is the in-process equivalent, one token bucket per key.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
}

func NewLocalLimiter(perSecond int) *LocalLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &LocalLimiter{limiters: make(map[string]*rate.Limiter), limit: limit}
}

func (l *LocalLimiter) Wait(ctx context.Context, key string) error {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, 1)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Wait(ctx)
}
