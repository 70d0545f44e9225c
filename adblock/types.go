package adblock

import "strings"

// Category 规则分类
type Category string

const (
	CategoryAd      Category = "Ad"
	CategoryTracker Category = "Tracker"
)

// ParseCategory 解析配置中的分类名称（不区分大小写）
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ad", "ads":
		return CategoryAd, true
	case "tracker", "trackers":
		return CategoryTracker, true
	default:
		return "", false
	}
}

// Rule 表示一条清洗后的规则
type Rule struct {
	Pattern  string   // 清洗后的模式字符串
	Raw      string   // 原始规则文本
	Category Category // 分类
}

// MatchResult 匹配结果
// 零值即为 "未匹配"，也会被写入缓存
type MatchResult struct {
	Matched  bool     `json:"matched"`
	Category Category `json:"category,omitempty"`
}

// NoMatch is the stored negative result.
var NoMatch = MatchResult{}

// CleanPattern 将规则行清洗为用于匹配的模式
// 去掉所有 * 和 ^，再去掉首部的 | / || 和尾部的 |，最后转小写。
// 先删除通配符再裁剪管道符，保证结果幂等。
func CleanPattern(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if strings.ContainsAny(s, "*^") {
		s = strings.NewReplacer("*", "", "^", "").Replace(s)
	}
	s = strings.TrimLeft(s, "|")
	s = strings.TrimRight(s, "|")
	return strings.TrimSpace(s)
}
