// Package cache memoizes decoded flowcharts by the hash of their source.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// InMemory holds at most max values and evicts the oldest entry when full.
// Concurrent misses on the same source share one computation; failed or
// panicking computations are not cached.
type InMemory[V any] struct {
	mu    sync.RWMutex
	max   int
	items map[string]V
	order []string
	group singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewInMemory[V any](max int) *InMemory[V] {
	if max <= 0 {
		max = 1
	}
	return &InMemory[V]{
		max:   max,
		items: make(map[string]V, max),
	}
}

func (c *InMemory[V]) GetOrCompute(source string, fn func() (V, error)) (V, error) {
	key := hash(source)

	c.mu.RLock()
	if v, ok := c.items[key]; ok {
		c.mu.RUnlock()
		c.hits.Add(1)
		return v, nil
	}
	c.mu.RUnlock()
	c.misses.Add(1)

	out, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		v, ok := c.items[key]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}

		v, err := safeCall(fn)
		if err != nil {
			return v, err
		}
		c.store(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return out.(V), nil
}

func (c *InMemory[V]) store(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; ok {
		return
	}
	for len(c.items) >= c.max && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
	c.items[key] = v
	c.order = append(c.order, key)
}

func (c *InMemory[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

type Stats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

func (c *InMemory[V]) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: c.Len()}
}

func safeCall[V any](fn func() (V, error)) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cache compute panicked: %v", r)
		}
	}()
	return fn()
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
