package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/guarzo/mtgautobuy/internal/testutil"
)

func TestRedisCache_Integration(t *testing.T) {
	addr := testutil.GetTestRedisAddr()
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	c, err := NewRedisCache(ctx, RedisConfig{Addr: addr, Prefix: "autobuy-test-" + uuid.NewString(), DefaultTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewRedisCache failed: %v", err)
	}
	defer c.Close()

	key := MinPriceKey("sol-ring")
	if err := c.Set(ctx, key, 1.25, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	var price float64
	found, err := c.Get(ctx, key, &price)
	if err != nil || !found || price != 1.25 {
		t.Fatalf("Get = %v %v %f", found, err, price)
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	if found, _ := c.Get(ctx, key, &price); found {
		t.Error("key should be gone after Delete")
	}
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisCache(ctx, RedisConfig{Addr: "127.0.0.1:1"}); err == nil {
		t.Error("expected ping failure")
	}
}
