package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"trackerlens/adblock"
)

func TestLRUSetThenGet(t *testing.T) {
	c := NewLRUCache[int](4)
	c.Set("k", 7)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}

// TestLRUEvictsLeastRecentlyUsed set(a) set(b) get(a) set(c) 后 b 被淘汰
func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	assert.True(t, c.Has("a"))
	assert.True(t, c.Has("c"))
	assert.False(t, c.Has("b"))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Evicted)
}

func TestLRUHasDoesNotPromote(t *testing.T) {
	c := NewLRUCache[int](2)
	c.Set("a", 1)
	c.Set("b", 2)
	assert.True(t, c.Has("a"))
	c.Set("c", 3)

	assert.False(t, c.Has("a"), "Has must not promote a")
	assert.True(t, c.Has("b"))
}

func TestLRUOverflowByOneEvictsExactlyOne(t *testing.T) {
	const maxSize = 10
	c := NewLRUCache[int](maxSize)
	for i := 0; i <= maxSize; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	assert.Equal(t, maxSize, c.Len())
	assert.False(t, c.Has("k0"))
	for i := 1; i <= maxSize; i++ {
		assert.True(t, c.Has(fmt.Sprintf("k%d", i)))
	}
}

func TestLRUUpdateExistingKey(t *testing.T) {
	c := NewLRUCache[string](2)
	c.Set("a", "x")
	c.Set("b", "y")
	c.Set("a", "z")
	c.Set("c", "w")

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "z", v)
	assert.False(t, c.Has("b"))
}

func TestLRUStatsAndClear(t *testing.T) {
	c := NewLRUCache[int](0)
	assert.Equal(t, 10000, c.Capacity())

	c.Set("a", 1)
	c.Get("a")
	c.Get("missing")
	s := c.Stats()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
	assert.InDelta(t, 0.5, s.HitRate(), 0.0001)

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Keys())
}

func TestMatchCacheStoresNegativeResults(t *testing.T) {
	c := NewMatchCache(8)
	c.Set("https://example.com/", adblock.NoMatch)

	v, ok := c.Get("https://example.com/")
	assert.True(t, ok, "negative result must be cached")
	assert.False(t, v.Matched)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Len(t, []rune(Truncate("https://example.com/a/very/long/path", 12)), 12)
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))
}

func TestDisplayCache(t *testing.T) {
	d := NewDisplayCache(2, 8)
	assert.Equal(t, "https...", d.Display("https://tracker.example/pixel"))
	assert.Equal(t, "https...", d.Display("https://tracker.example/pixel"))
	assert.Equal(t, uint64(1), d.lru.Stats().Hits)
}
