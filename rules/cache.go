package rules

import (
	"log"
	"sync"
	"time"

	"main/entity"
)

// Store is the part of the rule store the cache consumes.
type Store interface {
	ListRules() ([]entity.CategoryRule, error)
	ListCategories() ([]entity.CategoryInfo, error)
}

// Snapshot is an immutable view of the active rules. Classification calls
// always see a complete snapshot, never a partially refreshed one.
type Snapshot struct {
	Rules      []entity.CategoryRule
	Categories map[int64]entity.CategoryInfo
	LoadedAt   time.Time
}

// Cache keeps the current snapshot in memory. A snapshot that is empty,
// invalidated, or older than the TTL keeps serving while a background
// reload replaces it, so Snapshot never touches the store on the caller's
// goroutine.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mutex      sync.RWMutex
	snap       *Snapshot
	dirty      bool
	refreshing bool
}

func NewCache(store Store, ttl time.Duration) *Cache {
	return &Cache{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Invalidate marks the snapshot stale after an external rule change.
func (c *Cache) Invalidate() {
	c.mutex.Lock()
	c.dirty = true
	c.mutex.Unlock()
}

// Snapshot returns the current snapshot without blocking on the store.
// A stale snapshot is returned as-is and a single background refresh is
// kicked off; nil is returned only if no snapshot has ever loaded.
func (c *Cache) Snapshot() *Snapshot {
	c.mutex.RLock()
	snap := c.snap
	fresh := snap != nil && !c.dirty && c.now().Sub(snap.LoadedAt) < c.ttl
	c.mutex.RUnlock()

	if fresh {
		return snap
	}

	c.mutex.Lock()
	if !c.refreshing {
		c.refreshing = true
		go c.refresh()
	}
	c.mutex.Unlock()
	return snap
}

// Refresh reloads the snapshot synchronously. Called once at startup so
// the first classification already sees the stored rules; every later
// reload runs in the background.
func (c *Cache) Refresh() {
	c.mutex.Lock()
	if c.refreshing {
		c.mutex.Unlock()
		return
	}
	c.refreshing = true
	c.mutex.Unlock()
	c.refresh()
}

func (c *Cache) refresh() {
	// Clear dirty before reading so an Invalidate racing with the reload
	// marks the new snapshot stale again.
	c.mutex.Lock()
	c.dirty = false
	c.mutex.Unlock()

	ruleList, err := c.store.ListRules()
	var categoryList []entity.CategoryInfo
	if err == nil {
		categoryList, err = c.store.ListCategories()
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.refreshing = false
	if err != nil {
		log.Printf("rules: refresh failed, keeping previous snapshot: %v", err)
		c.dirty = true
		return
	}

	categories := make(map[int64]entity.CategoryInfo, len(categoryList))
	for _, cat := range categoryList {
		categories[cat.ID] = cat
	}

	// Replace the whole snapshot; readers hold either the old or new one.
	c.snap = &Snapshot{
		Rules:      ruleList,
		Categories: categories,
		LoadedAt:   c.now(),
	}
}
