package cache_test

import (
	"testing"
	"time"

	"github.com/boddenberg/occurrence-console/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[int](5 * time.Minute)
	defer c.Close()

	c.Set("ana@example.com", 2)
	val, ok := c.Get("ana@example.com")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != 2 {
		t.Errorf("expected 2, got %d", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[int](5 * time.Minute)
	defer c.Close()

	if _, ok := c.Get("nobody@example.com"); ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[int](50 * time.Millisecond)
	defer c.Close()

	c.Set("k", 1)
	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected cache entry to be expired")
	}
	if c.Len() != 0 {
		t.Errorf("expected no live entries, got %d", c.Len())
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[int](5 * time.Minute)
	defer c.Close()

	c.Set("k", 1)
	c.Delete("k")

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_CloseTwice(t *testing.T) {
	c := cache.New[string](time.Minute)
	c.Close()
	c.Close()
}
