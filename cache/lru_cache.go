package cache

import (
	"github.com/hashicorp/golang-lru/simplelru"
)

// LRUCache 严格 LRU 缓存
// 基于 simplelru（哈希表 + 双向链表），Get/Set 均为 O(1)。
// 不加锁：只允许在事件循环协程上访问。
type LRUCache[V any] struct {
	lru      *simplelru.LRU
	capacity int
	hits     uint64
	misses   uint64
	evicted  uint64
}

// NewLRUCache 创建一个容量限制的 LRU 缓存
func NewLRUCache[V any](capacity int) *LRUCache[V] {
	if capacity <= 0 {
		capacity = 10000 // 默认容量
	}
	c := &LRUCache[V]{capacity: capacity}
	// capacity > 0 时 NewLRU 不会返回错误
	c.lru, _ = simplelru.NewLRU(capacity, func(_, _ interface{}) {
		c.evicted++
	})
	return c
}

// Get 获取一个值，并将其标记为最近使用
func (c *LRUCache[V]) Get(key string) (V, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return v.(V), true
}

// Has 仅检查是否存在，不更新访问顺序
func (c *LRUCache[V]) Has(key string) bool {
	return c.lru.Contains(key)
}

// Peek 获取一个值，但不更新 LRU 访问顺序
func (c *LRUCache[V]) Peek(key string) (V, bool) {
	v, ok := c.lru.Peek(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Set 添加或更新一个值
// 已满时先淘汰一个最久未使用的条目
func (c *LRUCache[V]) Set(key string, value V) {
	c.lru.Add(key, value)
}

// Delete 从缓存中删除一个键
func (c *LRUCache[V]) Delete(key string) {
	c.lru.Remove(key)
}

// Len 返回当前缓存中的元素个数
func (c *LRUCache[V]) Len() int {
	return c.lru.Len()
}

// Capacity 返回容量
func (c *LRUCache[V]) Capacity() int {
	return c.capacity
}

// Clear 清空缓存
func (c *LRUCache[V]) Clear() {
	c.lru.Purge()
}

// Keys 按从旧到新的顺序返回所有键
func (c *LRUCache[V]) Keys() []string {
	raw := c.lru.Keys()
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, k.(string))
	}
	return keys
}

// Stats 返回命中统计
func (c *LRUCache[V]) Stats() Stats {
	return Stats{
		Size:     c.lru.Len(),
		Capacity: c.capacity,
		Hits:     c.hits,
		Misses:   c.misses,
		Evicted:  c.evicted,
	}
}
