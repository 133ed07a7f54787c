package config

import (
	"sort"
	"sync"
)

// Cache holds resolved execution configurations keyed by archetype name.
// This is the only mutable shared state in the resolver; it lives for the
// process unless explicitly cleared. Tests construct isolated instances
// instead of sharing one.
type Cache struct {
	mu      sync.RWMutex
	configs map[string]*ExecutionConfig
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{configs: make(map[string]*ExecutionConfig)}
}

// Get returns the cached configuration for an archetype name.
func (c *Cache) Get(name string) (*ExecutionConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cfg, ok := c.configs[name]
	return cfg, ok
}

// Set stores a resolved configuration.
func (c *Cache) Set(name string, cfg *ExecutionConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs[name] = cfg
}

// Names returns the sorted archetype names currently cached.
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.configs))
	for name := range c.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear empties the cache, forcing fresh resolution. Used for testing.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs = make(map[string]*ExecutionConfig)
}
