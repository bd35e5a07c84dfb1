package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process TTL store. Expired entries are dropped lazily
// on read and by a background janitor so abandoned keys cannot accumulate.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	stopJanitor chan struct{}
	janitorDone chan struct{}
	closeOnce   sync.Once
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryCache creates a memory cache with a janitor sweeping every minute.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		entries:     make(map[string]memoryEntry),
		stopJanitor: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}
	go c.janitor(time.Minute)
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || now.After(entry.expiresAt) {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryCache) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := c.Get(ctx, key)
	return ok, err
}

func (c *MemoryCache) Put(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Forget(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) ForgetMany(_ context.Context, keys []string) error {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return nil
}

// Close stops the janitor. Safe to call multiple times.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopJanitor)
		<-c.janitorDone
	})
	return nil
}

func (c *MemoryCache) janitor(interval time.Duration) {
	defer close(c.janitorDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopJanitor:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
