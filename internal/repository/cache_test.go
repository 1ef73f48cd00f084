package repository

import (
	"sync"
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c := NewCache[string, string](time.Minute)

	c.Set("key1", "value1")
	got, ok := c.Get("key1")
	if !ok {
		t.Fatal("Get('key1') should return true")
	}
	if got != "value1" {
		t.Errorf("Get('key1') = %v, want 'value1'", got)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("Get('missing') should return false")
	}
}

func TestCache_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache[int64, int](time.Second)
	c.now = func() time.Time { return now }

	c.Set(1, 10)
	if _, ok := c.Get(1); !ok {
		t.Fatal("key should be present immediately after Set")
	}

	now = now.Add(2 * time.Second)
	if _, ok := c.Get(1); ok {
		t.Error("key should be expired after TTL")
	}
}

func TestCache_ZeroTTLDisabled(t *testing.T) {
	c := NewCache[int64, int](0)
	c.Set(1, 10)
	if _, ok := c.Get(1); ok {
		t.Error("zero-TTL cache should never hit")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestCache_DeleteAndCleanup(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache[int, int](time.Second)
	c.now = func() time.Time { return now }

	c.Set(1, 1)
	c.Delete(1)
	if _, ok := c.Get(1); ok {
		t.Error("deleted key should miss")
	}

	for i := 0; i < cleanupThreshold; i++ {
		c.Set(i, i)
	}
	now = now.Add(time.Minute)
	c.Set(-1, -1)
	if c.Len() != 1 {
		t.Errorf("Len() after sweep = %d, want 1", c.Len())
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache[string, int](time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.Set("key", n)
		}(i)
		go func() {
			defer wg.Done()
			c.Get("key")
		}()
	}
	wg.Wait()

	if _, ok := c.Get("key"); !ok {
		t.Error("key should exist after concurrent writes")
	}
}
