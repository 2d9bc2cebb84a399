package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/triedb/pkg/trie"
)

func TestSnapshotCacheGetPutRoundTrip(t *testing.T) {
	c := NewSnapshotCache(4)

	state := trie.New()
	state.Put("x", "1")
	c.Put("commit-a", state)

	got, ok := c.Get("commit-a")
	require.True(t, ok)
	v, ok := got.Get("x")
	require.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestSnapshotCacheMiss(t *testing.T) {
	c := NewSnapshotCache(4)
	_, ok := c.Get("does-not-exist")
	assert.False(t, ok)
}

func TestSnapshotCacheReturnsIndependentClone(t *testing.T) {
	c := NewSnapshotCache(4)
	state := trie.New()
	state.Put("x", "1")
	c.Put("commit-a", state)

	got, _ := c.Get("commit-a")
	got.Put("x", "mutated")

	again, _ := c.Get("commit-a")
	v, _ := again.Get("x")
	assert.Equal(t, "1", v, "cached snapshot must not be mutated by callers")
}

func TestSnapshotCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewSnapshotCache(2)
	empty := trie.New()

	c.Put("a", empty)
	c.Put("b", empty)
	c.Get("a") // a is now most recently used
	c.Put("c", empty)

	_, aOK := c.Get("a")
	_, bOK := c.Get("b")
	_, cOK := c.Get("c")
	assert.True(t, aOK)
	assert.False(t, bOK, "b should have been evicted as least recently used")
	assert.True(t, cOK)
}

func TestSnapshotCacheStats(t *testing.T) {
	c := NewSnapshotCache(4)
	c.Put("a", trie.New())

	c.Get("a")
	c.Get("missing")

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}
