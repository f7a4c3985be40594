package tree

import "sync"

// Cache is the process-wide mapping of root path to a shared DirTree.
// Handles are refcounted rather than held via a language-level weak
// pointer (this module targets go1.20, which has no portable weak-ref
// primitive): the last Release on a root evicts it from the cache under
// the same lock that serializes lookups, which is the behavior the spec
// asks of a weak-valued cache with a deleter.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	tree *DirTree
	refs int
}

// NewCache returns an empty process-wide tree cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*cacheEntry)}
}

// Handle is a shared reference to a cached DirTree. Callers must call
// Release exactly once when done with it.
type Handle struct {
	*DirTree
	cache *Cache
	root  string
}

// GetCached returns a handle to the tree cached for root, constructing a
// new empty tree if none is cached (or the prior one was fully
// released). recursiveRemove is captured only on first construction;
// later lookups inherit whatever the first caller chose.
func (c *Cache) GetCached(root string, recursiveRemove bool) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[root]
	if !ok {
		e = &cacheEntry{tree: NewDirTree(root, recursiveRemove)}
		c.entries[root] = e
	}
	e.refs++

	return &Handle{DirTree: e.tree, cache: c, root: root}
}

// Release drops this handle's share of the underlying tree. When the
// last handle for a root is released, the tree is evicted from the
// cache; the next GetCached for that root starts fresh.
func (h *Handle) Release() {
	h.cache.mu.Lock()
	defer h.cache.mu.Unlock()

	e, ok := h.cache.entries[h.root]
	if !ok {
		return
	}

	e.refs--
	if e.refs <= 0 {
		delete(h.cache.entries, h.root)
	}
}

// Len reports the number of distinct roots currently cached. Exposed for
// tests and diagnostics only.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
