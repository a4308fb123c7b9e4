package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type MemoryCache struct {
	items   map[string]*item
	mutex   sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	hits    int64
	misses  int64
	logger  *logrus.Entry
}

type item struct {
	value     []byte
	expiresAt time.Time
	lastUsed  time.Time
}

// NewMemoryCache keeps at most maxSize entries, evicting the least recently
// used one when full. ttl applies when Set is called with a zero ttl.
func NewMemoryCache(maxSize int, ttl time.Duration, logger *logrus.Entry) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	if logger == nil {
		logger = logrus.WithField("component", "cache")
	}
	return &MemoryCache{
		items:   make(map[string]*item),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	it, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, ErrCacheMiss
	}
	now := c.now()
	if !it.expiresAt.IsZero() && now.After(it.expiresAt) {
		delete(c.items, key)
		c.misses++
		return nil, ErrCacheMiss
	}
	it.lastUsed = now
	c.hits++
	return append([]byte(nil), it.value...), nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if ttl == 0 {
		ttl = c.ttl
	}
	now := c.now()
	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		c.evictLRU()
	}
	it := &item{value: append([]byte(nil), value...), lastUsed: now}
	if ttl > 0 {
		it.expiresAt = now.Add(ttl)
	}
	c.items[key] = it
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.items, key)
	return nil
}

func (c *MemoryCache) Stats(ctx context.Context) (*Stats, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return &Stats{Backend: "memory", Entries: len(c.items), Hits: c.hits, Misses: c.misses}, nil
}

func (c *MemoryCache) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items = make(map[string]*item)
	return nil
}

func (c *MemoryCache) evictLRU() {
	var oldestKey string
	var oldest time.Time
	for k, it := range c.items {
		if oldestKey == "" || it.lastUsed.Before(oldest) {
			oldestKey = k
			oldest = it.lastUsed
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
		c.logger.WithField("key", oldestKey).Debug("evicted least recently used entry")
	}
}
