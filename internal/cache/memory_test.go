package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheGetSetDelete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if _, err := c.Get(ctx, "room:1:messages"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get on empty cache = %v, want ErrCacheMiss", err)
	}

	if err := c.Set(ctx, "room:1:messages", []byte(`[]`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "room:1:messages")
	if err != nil || string(got) != "[]" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	if err := c.Delete(ctx, "room:1:messages"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "room:1:messages"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get after Delete = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Second)
	if _, err := c.Get(ctx, "k"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get after expiry = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheCopiesValue(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	data := []byte("abc")
	c.Set(ctx, "k", data, 0)
	data[0] = 'z'

	got, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("cached value mutated: %q", got)
	}
}
