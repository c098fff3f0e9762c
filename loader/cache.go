package loader

import (
	"container/list"
	"sync"

	"github.com/i2y/prototree/tree"
)

// schemaCache is an LRU cache of built schemas keyed by source.
type schemaCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*list.Element
	lru     *list.List
}

type cacheEntry struct {
	key    string
	schema *tree.Schema
}

// newSchemaCache creates a cache holding at most maxSize schemas. A maxSize of zero disables
// caching.
func newSchemaCache(maxSize int) *schemaCache {
	return &schemaCache{
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

func (c *schemaCache) Get(key string) (*tree.Schema, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(elem)

	return elem.Value.(*cacheEntry).schema, true
}

func (c *schemaCache) Put(key string, s *tree.Schema) {
	if c.maxSize <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*cacheEntry).schema = s
		c.lru.MoveToFront(elem)

		return
	}

	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, schema: s})

	for c.lru.Len() > c.maxSize {
		c.evictOldest()
	}
}

func (c *schemaCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.lru.Remove(elem)
		delete(c.entries, key)
	}
}

func (c *schemaCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.lru.Init()
}

func (c *schemaCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lru.Len()
}

// evictOldest removes the least recently used entry.
func (c *schemaCache) evictOldest() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	c.lru.Remove(elem)
	delete(c.entries, elem.Value.(*cacheEntry).key)
}
