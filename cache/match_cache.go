package cache

import (
	"trackerlens/adblock"
)

// MatchCache URL -> 匹配结果，未匹配的结果同样缓存
type MatchCache = LRUCache[adblock.MatchResult]

// NewMatchCache 创建匹配结果缓存
func NewMatchCache(capacity int) *MatchCache {
	return NewLRUCache[adblock.MatchResult](capacity)
}

// Ellipsis 截断标记
const Ellipsis = "..."

// DisplayCache 缓存 URL 的显示形式
type DisplayCache struct {
	lru    *LRUCache[string]
	maxLen int
}

// NewDisplayCache 创建显示 URL 缓存，maxLen 为显示形式的最大长度
func NewDisplayCache(capacity, maxLen int) *DisplayCache {
	return &DisplayCache{
		lru:    NewLRUCache[string](capacity),
		maxLen: maxLen,
	}
}

// Display 返回 URL 的显示形式，超长时截断并追加省略号
func (d *DisplayCache) Display(url string) string {
	if v, ok := d.lru.Get(url); ok {
		return v
	}
	v := Truncate(url, d.maxLen)
	d.lru.Set(url, v)
	return v
}

// Clear 清空缓存
func (d *DisplayCache) Clear() {
	d.lru.Clear()
}

// Truncate 把 s 截断到最多 maxLen 个字符（含省略号）
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if maxLen <= 0 || len(runes) <= maxLen {
		return s
	}
	if maxLen <= len(Ellipsis) {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-len(Ellipsis)]) + Ellipsis
}
