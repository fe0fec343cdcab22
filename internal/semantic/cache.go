package semantic

import (
	"sync"

	"github.com/Veraticus/family-budget/internal/embedding"
)

// prototypeCache memoizes prompt embeddings keyed by prompt text, so an edited
// prompt simply misses.
type prototypeCache struct {
	entries map[string]embedding.Vector
	mu      sync.RWMutex
}

func newPrototypeCache() *prototypeCache {
	return &prototypeCache{entries: make(map[string]embedding.Vector)}
}

func (c *prototypeCache) get(prompt string) (embedding.Vector, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[prompt]
	return v, ok
}

func (c *prototypeCache) set(prompt string, v embedding.Vector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[prompt] = v
}

func (c *prototypeCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]embedding.Vector)
}

func (c *prototypeCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
