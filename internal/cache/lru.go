package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// LRU caches whole blocks keyed by block index. Capacity is counted in
// entries. Values are stored as given; callers copy if they retain buffers.
type LRU struct {
	mu        sync.Mutex
	capacity  int
	items     map[uint32]*list.Element
	evictList *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key   uint32
	value []byte
}

// NewLRU creates a cache holding at most capacity blocks. A capacity below
// one disables caching.
func NewLRU(capacity int) *LRU {
	return &LRU{
		capacity:  capacity,
		items:     make(map[uint32]*list.Element),
		evictList: list.New(),
	}
}

// Get returns the cached block at key.
func (c *LRU) Get(key uint32) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry).value, true
	}
	c.misses.Add(1)
	return nil, false
}

// Set stores b at key, evicting the least recently used block when full.
func (c *LRU) Set(key uint32, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity < 1 {
		return
	}
	if ent, ok := c.items[key]; ok {
		c.evictList.MoveToFront(ent)
		ent.Value.(*entry).value = b
		return
	}

	for c.evictList.Len() >= c.capacity {
		c.removeElement(c.evictList.Back())
	}
	c.items[key] = c.evictList.PushFront(&entry{key, b})
}

// Remove drops key if present.
func (c *LRU) Remove(key uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.removeElement(ent)
	}
}

// Purge drops every entry. Statistics are kept.
func (c *LRU) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.items)
	c.evictList.Init()
}

// Len returns the number of cached blocks.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

func (c *LRU) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *LRU) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	delete(c.items, e.Value.(*entry).key)
}
