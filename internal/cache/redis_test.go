package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

// newTestRedis connects to MAILACCT_TEST_REDIS, skipping the test when unset.
func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("MAILACCT_TEST_REDIS")
	if addr == "" {
		t.Skip("MAILACCT_TEST_REDIS not set")
	}
	r := NewRedis(RedisOptions{Address: addr, Prefix: "mailacct-test:" + t.Name() + ":", TTL: time.Minute})
	ctx := context.Background()
	if err := r.Ping(ctx); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestMiss(t *testing.T) {
	if !errors.Is(miss(redis.Nil), ErrMiss) {
		t.Error("redis.Nil not mapped to ErrMiss")
	}
	other := errors.New("boom")
	if miss(other) != other {
		t.Error("other errors must pass through")
	}
}

func TestRedis_Groups(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	if err := r.PutInGroup(ctx, "g", "a", []byte("1")); err != nil {
		t.Fatalf("PutInGroup() error: %v", err)
	}
	got, err := r.GetFromGroup(ctx, "g", "a")
	if err != nil || string(got) != "1" {
		t.Fatalf("GetFromGroup() = %q, %v", got, err)
	}
	if err := r.InvalidateGroup(ctx, "g"); err != nil {
		t.Fatalf("InvalidateGroup() error: %v", err)
	}
	if _, err := r.GetFromGroup(ctx, "g", "a"); !errors.Is(err, ErrMiss) {
		t.Errorf("GetFromGroup() after invalidation error = %v, want ErrMiss", err)
	}
}

func TestRedis_GetPut(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	if err := r.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	got, err := r.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	r.Remove(ctx, "k")
	if _, err := r.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get() after Remove error = %v, want ErrMiss", err)
	}
}
