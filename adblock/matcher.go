package adblock

import (
	"strings"
	"sync/atomic"

	radix "github.com/hashicorp/go-immutable-radix"
)

// PatternStore 基于 Radix Tree 的多起点子串匹配器
// 每个清洗后的模式作为一个 key，叶子的值为分类。
// 启动时构建一次，此后只读；读取无需加锁。
type PatternStore struct {
	tree atomic.Pointer[radix.Tree]
}

// NewPatternStore 创建一个空的模式库
func NewPatternStore() *PatternStore {
	s := &PatternStore{}
	s.tree.Store(radix.New())
	return s
}

// Insert 清洗并插入一条模式，返回是否真正插入
// 相同模式重复插入时覆盖分类（后插入者生效）
func (s *PatternStore) Insert(raw string, category Category) bool {
	pattern := CleanPattern(raw)
	if pattern == "" {
		return false
	}
	newTree, _, _ := s.tree.Load().Insert([]byte(pattern), category)
	s.tree.Store(newTree)
	return true
}

// InsertBatch 在一个事务中插入一批已清洗的规则
// 用于分块加载，整批提交后才对匹配可见
func (s *PatternStore) InsertBatch(rules []Rule) int {
	if len(rules) == 0 {
		return 0
	}
	txn := s.tree.Load().Txn()
	inserted := 0
	for _, r := range rules {
		if r.Pattern == "" {
			continue
		}
		txn.Insert([]byte(r.Pattern), r.Category)
		inserted++
	}
	s.tree.Store(txn.Commit())
	return inserted
}

// Match 对 URL 的每个起始偏移量从左到右扫描
// 在每个偏移量沿树向下走，遇到第一个终止节点立即返回，
// 因此同一偏移量上较短的模式优先于较长的模式。
func (s *PatternStore) Match(url string) MatchResult {
	tree := s.tree.Load()
	if tree.Len() == 0 || url == "" {
		return NoMatch
	}

	text := []byte(strings.ToLower(url))
	root := tree.Root()

	var result MatchResult
	visit := func(_ []byte, v interface{}) bool {
		category, _ := v.(Category)
		result = MatchResult{Matched: true, Category: category}
		return true
	}

	for i := 0; i < len(text); i++ {
		root.WalkPath(text[i:], visit)
		if result.Matched {
			return result
		}
	}
	return NoMatch
}

// Len 返回不同模式的数量
func (s *PatternStore) Len() int {
	return s.tree.Load().Len()
}
