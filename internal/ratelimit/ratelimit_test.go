package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryStoreWindow(t *testing.T) {
	store := NewMemoryStore(10, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 1; i <= 10; i++ {
		ok, err := store.Allow(ctx, "919876543210")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("command %d should be allowed", i)
		}
	}

	// 11th command inside the window is rejected.
	if ok, _ := store.Allow(ctx, "919876543210"); ok {
		t.Fatal("11th command should be rejected")
	}
	if left, _ := store.Remaining(ctx, "919876543210"); left != 0 {
		t.Fatalf("remaining = %d, want 0", left)
	}

	// Other identities are unaffected.
	if ok, _ := store.Allow(ctx, "14155550100"); !ok {
		t.Fatal("distinct identity should be allowed")
	}

	// Window expiry resets the budget.
	now = now.Add(61 * time.Second)
	if ok, _ := store.Allow(ctx, "919876543210"); !ok {
		t.Fatal("command after window reset should be allowed")
	}
	if left, _ := store.Remaining(ctx, "919876543210"); left != 9 {
		t.Fatalf("remaining after reset = %d, want 9", left)
	}
}

func TestRedisStoreWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client, 3, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ok, err := store.Allow(ctx, "123")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("command %d should be allowed", i)
		}
	}
	if ok, _ := store.Allow(ctx, "123"); ok {
		t.Fatal("over-budget command should be rejected")
	}

	mr.FastForward(61 * time.Second)
	if ok, _ := store.Allow(ctx, "123"); !ok {
		t.Fatal("command after window expiry should be allowed")
	}
}

func TestRedisStoreFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, 3, time.Minute)

	mr.Close()
	client.Close()

	ok, err := store.Allow(context.Background(), "123")
	if err == nil {
		t.Fatal("expected an error from the closed backend")
	}
	if !ok {
		t.Fatal("limiter must fail open on cache errors")
	}
}
