package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// FireGuard ensures a slot fires at most once per calendar day.
type FireGuard interface {
	Claim(ctx context.Context, slot string, day time.Time) (bool, error)
}

func dayKey(slot string, day time.Time) string {
	return fmt.Sprintf("reminder:fired:%s:%s", slot, day.Format("2006-01-02"))
}

// MemoryFireGuard is used by a single process without Redis.
type MemoryFireGuard struct {
	mu    sync.Mutex
	fired map[string]time.Time
}

func NewMemoryFireGuard() *MemoryFireGuard {
	return &MemoryFireGuard{fired: make(map[string]time.Time)}
}

func (g *MemoryFireGuard) Claim(_ context.Context, slot string, day time.Time) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := dayKey(slot, day)
	if _, ok := g.fired[key]; ok {
		return false, nil
	}
	// Drop claims older than two days.
	for k, at := range g.fired {
		if day.Sub(at) > 48*time.Hour {
			delete(g.fired, k)
		}
	}
	g.fired[key] = day
	return true, nil
}

// RedisFireGuard shares claims between replicas using SET NX.
type RedisFireGuard struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewRedisFireGuard(redisClient *redis.Client) *RedisFireGuard {
	return &RedisFireGuard{redisClient: redisClient, ttl: 36 * time.Hour}
}

func (g *RedisFireGuard) Claim(ctx context.Context, slot string, day time.Time) (bool, error) {
	ok, err := g.redisClient.SetNX(ctx, dayKey(slot, day), day.UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claiming %s: %w", slot, err)
	}
	return ok, nil
}
