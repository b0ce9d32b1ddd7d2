package cache

import (
	"fmt"
	"testing"
	"time"
)

func newTestCache[T any](maxSize int, ttl time.Duration) (*TTLCache[T], *time.Time) {
	c := NewTTLCache[T](maxSize, ttl)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestGetWithinTTL(t *testing.T) {
	c, now := newTestCache[string](10, 5*time.Minute)

	c.Set("a", "value")
	*now = now.Add(4 * time.Minute)

	got, ok := c.Get("a")
	if !ok || got != "value" {
		t.Fatalf("expected fresh hit, got %q ok=%v", got, ok)
	}
}

func TestGetAfterTTLEvicts(t *testing.T) {
	c, now := newTestCache[string](10, 5*time.Minute)

	c.Set("a", "value")
	*now = now.Add(5*time.Minute + time.Second)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected miss after TTL")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry should be evicted on read, size=%d", c.Size())
	}
}

func TestSetOverwritesAndRefreshes(t *testing.T) {
	c, now := newTestCache[int](10, 5*time.Minute)

	c.Set("k", 1)
	*now = now.Add(4 * time.Minute)
	c.Set("k", 2)
	*now = now.Add(4 * time.Minute)

	got, ok := c.Get("k")
	if !ok || got != 2 {
		t.Fatalf("expected refreshed value 2, got %d ok=%v", got, ok)
	}
	if c.Size() != 1 {
		t.Fatalf("overwrite must not grow the cache, size=%d", c.Size())
	}
}

func TestClearEvictsEverything(t *testing.T) {
	c, _ := newTestCache[int](10, 5*time.Minute)

	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	c.Clear()

	if c.Size() != 0 {
		t.Fatalf("expected empty cache after Clear, size=%d", c.Size())
	}
	for i := 0; i < 5; i++ {
		if _, ok := c.Get(fmt.Sprintf("k%d", i)); ok {
			t.Fatalf("key k%d survived Clear", i)
		}
	}

	// The cache stays usable after a wholesale clear.
	c.Set("fresh", 42)
	if got, ok := c.Get("fresh"); !ok || got != 42 {
		t.Fatalf("cache unusable after Clear")
	}
}

func TestLRUBound(t *testing.T) {
	c, _ := newTestCache[int](3, time.Hour)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Get("a") // a becomes most recently used
	c.Set("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("least recently used entry should have been evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("key %s should survive", k)
		}
	}
}

func TestCleanExpired(t *testing.T) {
	c, now := newTestCache[int](10, 5*time.Minute)

	c.Set("old", 1)
	*now = now.Add(3 * time.Minute)
	c.Set("new", 2)
	*now = now.Add(3 * time.Minute)

	if removed := c.CleanExpired(); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, ok := c.Get("new"); !ok {
		t.Fatalf("fresh entry must survive cleanup")
	}
}

func TestDelete(t *testing.T) {
	c, _ := newTestCache[int](10, time.Hour)
	c.Set("k", 1)
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected miss after Delete")
	}
	c.Delete("missing") // no-op
}
