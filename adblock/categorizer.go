package adblock

import (
	"fmt"
	"regexp"
	"strings"

	"trackerlens/config"
)

// SkipReason 规则被丢弃的原因
type SkipReason string

const (
	SkipNone      SkipReason = ""
	SkipBlank     SkipReason = "blank"
	SkipComment   SkipReason = "comment (! or [)"
	SkipCosmetic  SkipReason = "element-hiding (## or #@#)"
	SkipException SkipReason = "allowlist (@@)"
	SkipEmpty     SkipReason = "empty-after-cleaning"
)

// Predicate 是有序分类表中的一项
type Predicate struct {
	Expr     *regexp.Regexp
	Category Category
}

// Categorizer 按配置顺序对规则分类，第一个命中的谓词生效
// 没有任何谓词命中时默认为 Ad。
type Categorizer struct {
	predicates []Predicate
}

// NewCategorizer 从有序配置编译分类器
func NewCategorizer(rules []config.CategoryRule) (*Categorizer, error) {
	predicates := make([]Predicate, 0, len(rules))
	for i, r := range rules {
		category, ok := ParseCategory(r.Category)
		if !ok {
			return nil, fmt.Errorf("category rule %d: unknown category %q", i, r.Category)
		}
		expr, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("category rule %d: %w", i, err)
		}
		predicates = append(predicates, Predicate{Expr: expr, Category: category})
	}
	return &Categorizer{predicates: predicates}, nil
}

// Categorize 返回第一个命中谓词的分类
func (c *Categorizer) Categorize(text string) Category {
	for _, p := range c.predicates {
		if p.Expr.MatchString(text) {
			return p.Category
		}
	}
	return CategoryAd
}

// ParseLine 解析一行规则
// 注释、元素隐藏规则和白名单规则 (@@) 会被解析后直接丢弃，白名单不会生效。
func (c *Categorizer) ParseLine(line string) (Rule, SkipReason) {
	text := strings.TrimSpace(line)

	switch {
	case text == "":
		return Rule{}, SkipBlank
	case strings.HasPrefix(text, "!"), strings.HasPrefix(text, "["):
		return Rule{}, SkipComment
	case strings.Contains(text, "##"), strings.Contains(text, "#@#"):
		return Rule{}, SkipCosmetic
	case strings.HasPrefix(text, "@@"):
		return Rule{}, SkipException
	}

	// 去掉 $options 后缀
	if idx := strings.LastIndex(text, "$"); idx >= 0 {
		text = text[:idx]
	}

	category := c.Categorize(text)
	pattern := CleanPattern(text)
	if pattern == "" {
		return Rule{}, SkipEmpty
	}

	return Rule{
		Pattern:  pattern,
		Raw:      line,
		Category: category,
	}, SkipNone
}
