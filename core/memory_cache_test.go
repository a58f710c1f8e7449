package core

import (
	"context"
	"testing"
	"time"
)

func TestMemorySessionCache_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cache := NewMemorySessionCache().WithClock(func() time.Time { return now })

	if err := cache.Set(ctx, "USER:jane:accessToken", "tok", time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	if value, found, _ := cache.Get(ctx, "USER:jane:accessToken"); !found || value != "tok" {
		t.Fatalf("expected live entry, got %q found=%v", value, found)
	}

	now = now.Add(2 * time.Hour)
	if _, found, _ := cache.Get(ctx, "USER:jane:accessToken"); found {
		t.Fatalf("expected entry expired")
	}
}

func TestMemorySessionCache_ZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cache := NewMemorySessionCache().WithClock(func() time.Time { return now })

	if err := cache.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	now = now.Add(1000 * time.Hour)
	if _, found, _ := cache.Get(ctx, "k"); !found {
		t.Fatalf("expected entry without TTL to persist")
	}
}

func TestMemorySessionCache_DeleteReportsExistence(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySessionCache()

	if err := cache.Set(ctx, "k", "v", time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	if existed, err := cache.Delete(ctx, "k"); err != nil || !existed {
		t.Fatalf("first delete: existed=%v err=%v", existed, err)
	}
	if existed, err := cache.Delete(ctx, "k"); err != nil || existed {
		t.Fatalf("second delete: existed=%v err=%v", existed, err)
	}
}

func TestMemorySessionCache_EmptyKeyRejected(t *testing.T) {
	if err := NewMemorySessionCache().Set(context.Background(), "  ", "v", time.Hour); err == nil {
		t.Fatalf("expected empty key rejection")
	}
}
