// Package cache provides accelerators for pkg/store's checkout path: an
// in-memory LRU of recently visited commit snapshots, and an on-disk tier
// backed by Badger for snapshots that have aged out of memory.
//
// Neither tier changes observable behavior. A checkout that misses both
// falls back to the full undo/redo replay pkg/store already implements;
// the tiers only save that replay work on repeat visits to the same
// commit, which undo/redo/checkout churn makes common.
package cache

import (
	"container/list"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/orneryd/triedb/pkg/trie"
)

// SnapshotCache is a thread-safe, bounded LRU of commit id -> materialized
// trie. Commit ids are content-addressed and immutable, so entries never
// need invalidation beyond the ordinary LRU eviction.
type SnapshotCache struct {
	mu sync.RWMutex

	maxSize int
	list    *list.List
	items   map[uint64]*list.Element

	hits   uint64
	misses uint64
}

type snapshotEntry struct {
	dispersion uint64
	commitID   string
	state      *trie.Trie
}

// NewSnapshotCache creates a cache holding at most maxSize snapshots. A
// non-positive maxSize defaults to 256.
func NewSnapshotCache(maxSize int) *SnapshotCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &SnapshotCache{
		maxSize: maxSize,
		list:    list.New(),
		items:   make(map[uint64]*list.Element, maxSize),
	}
}

// dispersionKey spreads commit ids (which, being Merkle hashes, are
// already high entropy but string-keyed) across the map's buckets via
// xxhash, avoiding the string-comparison cost a map[string]* would pay on
// every lookup in a cache this hot.
func dispersionKey(commitID string) uint64 {
	return xxhash.Sum64String(commitID)
}

// Get returns the cached snapshot for commitID, cloning it so the caller
// can mutate the result freely without corrupting the cached copy.
func (c *SnapshotCache) Get(commitID string) (*trie.Trie, bool) {
	key := dispersionKey(commitID)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	entry := elem.Value.(*snapshotEntry)
	if entry.commitID != commitID {
		// Dispersion collision between two different commit ids.
		c.misses++
		return nil, false
	}

	c.list.MoveToFront(elem)
	c.hits++
	return entry.state.Clone(), true
}

// Put stores a clone of state under commitID, evicting the least recently
// used entry if the cache is at capacity.
func (c *SnapshotCache) Put(commitID string, state *trie.Trie) {
	key := dispersionKey(commitID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*snapshotEntry)
		entry.commitID = commitID
		entry.state = state.Clone()
		c.list.MoveToFront(elem)
		return
	}

	for c.list.Len() >= c.maxSize {
		oldest := c.list.Back()
		if oldest == nil {
			break
		}
		c.list.Remove(oldest)
		delete(c.items, oldest.Value.(*snapshotEntry).dispersion)
	}

	entry := &snapshotEntry{dispersion: key, commitID: commitID, state: state.Clone()}
	c.items[key] = c.list.PushFront(entry)
}

// Len returns the number of cached snapshots.
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list.Len()
}

// Stats returns hit/miss counters accumulated since creation.
func (c *SnapshotCache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
