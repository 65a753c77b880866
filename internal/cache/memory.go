package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache реализует Cache в памяти процесса
type MemoryCache struct {
	store *gocache.Cache
	// incMu сериализует read-modify-write счётчиков
	incMu sync.Mutex
}

// NewMemoryCache создаёт новый экземпляр MemoryCache
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{store: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Get возвращает значение по ключу
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.store.Get(key)
	if !ok {
		return "", false, nil
	}
	switch val := v.(type) {
	case string:
		return val, true, nil
	case int64:
		return strconv.FormatInt(val, 10), true, nil
	default:
		return "", false, fmt.Errorf("unexpected value type %T for key %s", v, key)
	}
}

// Set сохраняет значение с TTL
func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.store.Set(key, value, expiration(ttl))
	return nil
}

// Delete удаляет ключ
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.store.Delete(key)
	return nil
}

// Exists проверяет наличие ключа
func (c *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := c.store.Get(key)
	return ok, nil
}

// Increment увеличивает счётчик на n, сохраняя оставшийся TTL ключа
func (c *MemoryCache) Increment(_ context.Context, key string, n int64) (int64, error) {
	c.incMu.Lock()
	defer c.incMu.Unlock()

	v, exp, ok := c.store.GetWithExpiration(key)
	var current int64
	if ok {
		switch val := v.(type) {
		case int64:
			current = val
		case string:
			parsed, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("value of %s is not an integer: %w", key, err)
			}
			current = parsed
		default:
			return 0, fmt.Errorf("unexpected value type %T for key %s", v, key)
		}
	}

	ttl := gocache.NoExpiration
	if ok && !exp.IsZero() {
		ttl = time.Until(exp)
		if ttl <= 0 {
			ttl = gocache.NoExpiration
			current = 0
		}
	}
	current += n
	c.store.Set(key, current, ttl)
	return current, nil
}

func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}
