package cache

import "time"

// LayeredCache keeps a memory layer in front of a shared remote layer
type LayeredCache struct {
	memory Cache
	remote Cache
}

// NewLayeredCache creates a layered cache
func NewLayeredCache(memory Cache, remote Cache) *LayeredCache {
	return &LayeredCache{
		memory: memory,
		remote: remote,
	}
}

// Get checks memory first, then the remote layer
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	if val, found := c.remote.Get(key); found {
		// Promote with the memory layer's default TTL
		_ = c.memory.Set(key, val, 0)
		return val, true
	}

	return nil, false
}

// Set stores a value in both layers
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, ttl); err != nil {
		return err
	}
	return c.remote.Set(key, value, ttl)
}

func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.remote.Delete(key)
}

func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.remote.Clear()
}
