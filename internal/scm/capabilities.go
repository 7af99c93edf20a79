package scm

import "sync"

// DefaultCapabilities is the process-wide cache used by backends unless a
// test supplies its own.
var DefaultCapabilities = NewCapabilityCache()

// CapabilityCache memoizes backend feature checks, such as whether an
// extension is installed, for the life of the process. Keys take the form
// "<backend>.<capability>".
type CapabilityCache struct {
	mu     sync.Mutex
	values map[string]bool
	checks int
}

// NewCapabilityCache returns an empty cache.
func NewCapabilityCache() *CapabilityCache {
	return &CapabilityCache{values: make(map[string]bool)}
}

// Lookup returns the cached value for key, running check on the first call.
func (c *CapabilityCache) Lookup(key string, check func() bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.values[key]; ok {
		return v
	}
	v := check()
	c.checks++
	c.values[key] = v
	return v
}

// Cached returns the stored value for key and whether a check has run.
func (c *CapabilityCache) Cached(key string) (value, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok = c.values[key]
	return value, ok
}

// Checks returns how many checks the cache has run.
func (c *CapabilityCache) Checks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checks
}

// Reset forgets every cached value.
func (c *CapabilityCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]bool)
	c.checks = 0
}
