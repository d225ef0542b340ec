package main

import (
	"context"
	"testing"
	"time"

	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"jobgrid/common/cache"
	"jobgrid/common/cache/memory"
	"jobgrid/common/cache/redis"
	"jobgrid/services/web/internal/config"
)

func TestNewCacheWithoutRedis(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	c := newCache(&config.Config{CacheTTL: time.Minute}, zaptest.NewLogger(t), lc)

	if _, ok := c.(*memory.Cache); !ok {
		t.Fatalf("expected in-memory cache, got %T", c)
	}

	lc.RequireStart().RequireStop()
	if err := c.Set(context.Background(), "k", "v", 0); err != cache.ErrClosed {
		t.Fatalf("cache should be closed on stop, got %v", err)
	}
}

func TestNewCacheWithRedis(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	c := newCache(&config.Config{RedisAddr: "127.0.0.1:1", CacheTTL: time.Minute}, zaptest.NewLogger(t), lc)

	if _, ok := c.(*redis.Cache); !ok {
		t.Fatalf("expected redis cache, got %T", c)
	}
	lc.RequireStart().RequireStop()
}
