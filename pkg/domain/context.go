package domain

import (
	"fmt"
	"slices"
	"sync"
)

// Context is the keyed store shared by the stages of one pipeline run.
// Keys are write-once: a key that holds a value can never be overwritten.
// It is safe for concurrent use.
type Context struct {
	mu     sync.RWMutex
	values map[string]any
	order  []string
}

// NewContext creates a Context seeded with the given values.
func NewContext(seed map[string]any) *Context {
	c := &Context{values: make(map[string]any, len(seed))}
	keys := make([]string, 0, len(seed))
	for k := range seed {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		c.values[k] = seed[k]
		c.order = append(c.order, k)
	}
	return c
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Keys returns the stored keys in write order.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

// Len returns the number of stored keys.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// Merge writes all values or none of them.
// It returns ErrDuplicateKey if any key already holds a value.
func (c *Context) Merge(values map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(values))
	for k := range values {
		if _, exists := c.values[k]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, k)
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		c.values[k] = values[k]
		c.order = append(c.order, k)
	}
	return nil
}

// Snapshot returns a read-only view of the current values.
// Later writes to the Context are not visible through the Snapshot.
func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	values := make(map[string]any, len(c.values))
	for k, v := range c.values {
		values[k] = v
	}
	return Snapshot{values: values}
}

// Values returns a copy of every stored value.
func (c *Context) Values() map[string]any {
	return c.Snapshot().Values()
}

// Snapshot is an immutable view of a Context at a point in time.
type Snapshot struct {
	values map[string]any
}

// NewSnapshot builds a Snapshot directly from values, mostly for tests and single stage invocations.
func NewSnapshot(values map[string]any) Snapshot {
	return NewContext(values).Snapshot()
}

// Get returns the value stored under key.
func (s Snapshot) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// String returns the value under key if it is a string.
func (s Snapshot) String(key string) (string, bool) {
	v, ok := s.values[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// Has reports whether key holds a value.
func (s Snapshot) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Keys returns the stored keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Values returns a copy of the stored values.
func (s Snapshot) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
