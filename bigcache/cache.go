package cache

import (
	"context"
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"
)

// ErrNotFound is returned by Get for a missing or expired key.
var ErrNotFound = bigcache.ErrEntryNotFound

type CacheInterface interface {
	Set(key string, value []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
	Len() int
}

type Cache struct {
	bigCache *bigcache.BigCache
}

// NewCache creates a cache whose entries are evicted after window. Eviction runs on a background
// sweep, so readers that need an exact window must compare their own timestamps.
func NewCache(ctx context.Context, window time.Duration) (*Cache, error) {
	config := bigcache.DefaultConfig(window)
	config.CleanWindow = window
	config.Verbose = false
	bigCache, err := bigcache.New(ctx, config)
	if err != nil {
		return nil, err
	}
	return &Cache{bigCache: bigCache}, nil
}

func (c *Cache) Set(key string, value []byte) error {
	return c.bigCache.Set(key, value)
}

func (c *Cache) Get(key string) ([]byte, error) {
	return c.bigCache.Get(key)
}

// Delete removes a key. Deleting a missing key is not an error.
func (c *Cache) Delete(key string) error {
	if err := c.bigCache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return err
	}
	return nil
}

func (c *Cache) Len() int {
	return c.bigCache.Len()
}

func (c *Cache) Close() error {
	return c.bigCache.Close()
}
