package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func setupTestCache(t *testing.T, ttl time.Duration) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)}
	c := NewCache(ttl)
	c.now = clock.Now
	return c, clock
}

func TestCache_GenerateHash(t *testing.T) {
	// Arrange
	c := NewCache(time.Minute)

	// Act
	hash1 := c.GenerateHash("prompts/system.txt")
	hash2 := c.GenerateHash("prompts/system.txt")
	hash3 := c.GenerateHash("prompts/other.txt")

	// Assert
	if hash1 != hash2 {
		t.Errorf("GenerateHash() returned different results for same content")
	}
	if hash1 == hash3 {
		t.Errorf("GenerateHash() returned same result for different content")
	}
	if len(hash1) != 64 {
		t.Errorf("GenerateHash() length = %d, want 64", len(hash1))
	}
}

func TestCache_SetAndGet(t *testing.T) {
	// Arrange
	c, _ := setupTestCache(t, time.Hour)
	key := c.GenerateHash("bucket/path")

	// Act
	c.Set(key, "SYS_PROMPT")
	got, found := c.Get(key)

	// Assert
	if !found {
		t.Fatal("Get() returned found = false, want true")
	}
	if got != "SYS_PROMPT" {
		t.Errorf("Get() = %q, want SYS_PROMPT", got)
	}
}

func TestCache_Get_NotFound(t *testing.T) {
	c, _ := setupTestCache(t, time.Hour)

	if _, found := c.Get("non-existent"); found {
		t.Errorf("Get() found = true, want false")
	}
}

func TestCache_Get_Expired(t *testing.T) {
	// Arrange
	c, clock := setupTestCache(t, 10*time.Minute)
	c.Set("k", "v")

	// Act
	clock.Advance(11 * time.Minute)
	_, found := c.Get("k")

	// Assert
	if found {
		t.Errorf("Get() found = true, want false for expired entry")
	}
	if _, ok := c.entries["k"]; ok {
		t.Error("expired entry was not removed")
	}
}

func TestCache_Invalidate(t *testing.T) {
	c, _ := setupTestCache(t, time.Hour)
	c.Set("k", "v")

	c.Invalidate("k")

	if _, found := c.Get("k"); found {
		t.Error("Get() found = true after Invalidate")
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Set("k", "v")
			c.Get("k")
			c.Invalidate("other")
		}()
	}
	wg.Wait()

	if got, _ := c.Get("k"); got != "v" {
		t.Errorf("Get() = %q, want v", got)
	}
}
