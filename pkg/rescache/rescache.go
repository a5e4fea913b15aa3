// Package rescache is the resolution cache described in spec §4.M: a
// bounded LRU keyed by (normalizedName, type) with a TTL, invalidated on
// merge rather than on read.
package rescache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Key identifies a cached resolution result.
type Key struct {
	NormalizedName string
	Type           string
}

// Result is the cached outcome of a prior resolve.
type Result struct {
	EntityID string
	Outcome  string
}

type entry struct {
	result    Result
	expiresAt time.Time
}

// Cache is a MergeListener: it does not implement resolution logic, it
// only stores and invalidates prior results.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache[Key, entry]
	ttl time.Duration
	// byEntity indexes entityId -> set of primary keys so a merge of
	// (src,tgt) can drop every cache entry referencing either side.
	byEntity map[string]map[Key]struct{}
	nowFn    func() time.Time
}

// New returns a Cache bounded to maxSize entries, each living ttl before
// being treated as a miss.
func New(maxSize int, ttl time.Duration) (*Cache, error) {
	c := &Cache{
		ttl:      ttl,
		byEntity: make(map[string]map[Key]struct{}),
		nowFn:    time.Now,
	}

	backing, err := lru.NewWithEvict[Key, entry](maxSize, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.lru = backing
	return c, nil
}

func (c *Cache) onEvict(key Key, e entry) {
	if set, ok := c.byEntity[e.result.EntityID]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(c.byEntity, e.result.EntityID)
		}
	}
}

// Get returns the cached result for key, or false if absent or expired.
func (c *Cache) Get(key Key) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return Result{}, false
	}
	if c.nowFn().After(e.expiresAt) {
		c.lru.Remove(key)
		return Result{}, false
	}
	return e.result, true
}

// Put caches result under key.
func (c *Cache) Put(key Key, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, entry{result: result, expiresAt: c.nowFn().Add(c.ttl)})

	set, ok := c.byEntity[result.EntityID]
	if !ok {
		set = make(map[Key]struct{})
		c.byEntity[result.EntityID] = set
	}
	set[key] = struct{}{}
}

// InvalidateEntity drops every cache entry keyed to entityID.
func (c *Cache) InvalidateEntity(entityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.byEntity[entityID] {
		c.lru.Remove(key)
	}
	delete(c.byEntity, entityID)
}

// OnMerge implements the merge-listener contract: invalidate every entry
// touching either side of the merge.
func (c *Cache) OnMerge(sourceID, targetID string) {
	c.InvalidateEntity(sourceID)
	c.InvalidateEntity(targetID)
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
