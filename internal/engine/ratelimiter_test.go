package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func setupTestRL(t *testing.T, perSecond int) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisLimiter(client, perSecond, zap.NewNop()), mr
}

func TestRedisLimiter_AllowsWithinLimit(t *testing.T) {
	rl, _ := setupTestRL(t, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if !rl.Allow(ctx, "email") {
			t.Errorf("attempt %d should be allowed (limit=5)", i+1)
		}
	}
}

func TestRedisLimiter_BlocksOverLimit(t *testing.T) {
	rl, _ := setupTestRL(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rl.Allow(ctx, "email")
	}

	if rl.Allow(ctx, "email") {
		t.Error("attempt should be blocked when over limit")
	}
}

func TestRedisLimiter_ZeroLimit_AllowsAll(t *testing.T) {
	rl, _ := setupTestRL(t, 0)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if !rl.Allow(ctx, "email") {
			t.Errorf("attempt %d should be allowed with limit=0 (unlimited)", i+1)
		}
	}
}

func TestRedisLimiter_IsolationBetweenKeys(t *testing.T) {
	rl, _ := setupTestRL(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		rl.Allow(ctx, "email")
	}

	if rl.Allow(ctx, "email") {
		t.Error("email should be blocked")
	}
	if !rl.Allow(ctx, "push") {
		t.Error("push should be allowed, windows are per key")
	}
}

func TestRedisLimiter_WaitHonoursContext(t *testing.T) {
	rl, _ := setupTestRL(t, 1)
	ctx := context.Background()

	if err := rl.Wait(ctx, "email"); err != nil {
		t.Fatalf("first wait should pass immediately: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 120*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx, "email"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded while window is full, got %v", err)
	}
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	rl, mr := setupTestRL(t, 1)
	mr.Close()

	for i := 0; i < 3; i++ {
		if !rl.Allow(context.Background(), "email") {
			t.Fatal("limiter should fail open when redis is unavailable")
		}
	}
}

func TestLocalLimiter_Paces(t *testing.T) {
	l := NewLocalLimiter(20)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx, "email"); err != nil {
			t.Fatal(err)
		}
	}
	// Burst of one: the 2nd and 3rd attempts each wait ~50ms.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected pacing, 3 attempts took %v", elapsed)
	}
}

func TestLocalLimiter_Unlimited(t *testing.T) {
	l := NewLocalLimiter(0)
	for i := 0; i < 100; i++ {
		if err := l.Wait(context.Background(), "email"); err != nil {
			t.Fatal(err)
		}
	}
}
