package storage

import (
	"context"
	"sync"
)

// InMemoryCache implements EmbeddingCache with a map.
// Data is lost when the process terminates.
type InMemoryCache struct {
	mu      sync.RWMutex
	vectors map[Key][]float32
}

// NewInMemoryCache creates an empty in-memory cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{vectors: make(map[Key][]float32)}
}

// GetMany returns copies of the cached vectors for keys.
func (c *InMemoryCache) GetMany(ctx context.Context, keys []Key) (map[Key][]float32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	found := make(map[Key][]float32, len(keys))
	for _, k := range keys {
		if v, ok := c.vectors[k]; ok {
			found[k] = cloneVector(v)
		}
	}
	return found, nil
}

// PutMany stores copies of the given vectors.
func (c *InMemoryCache) PutMany(ctx context.Context, entries map[Key][]float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range entries {
		c.vectors[k] = cloneVector(v)
	}
	return nil
}

// Len returns the number of cached vectors.
func (c *InMemoryCache) Len(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors), nil
}

// Close is a no-op.
func (c *InMemoryCache) Close() error {
	return nil
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

var _ EmbeddingCache = (*InMemoryCache)(nil)
