package adblock

import (
	"strings"

	"github.com/AdguardTeam/urlfilter"
	"github.com/AdguardTeam/urlfilter/filterlist"
)

// ExceptionAuditor 收集被丢弃的白名单规则 (@@)，仅用于诊断
// 匹配路径从不参考它：白名单规则不会生效。
type ExceptionAuditor struct {
	engine    *urlfilter.DNSEngine
	ruleCount int
}

// NewExceptionAuditor 从原始规则行中挑出 @@ 规则并构建 urlfilter 引擎
func NewExceptionAuditor(lines []string) (*ExceptionAuditor, error) {
	var exceptions []string
	for _, line := range lines {
		text := strings.TrimSpace(line)
		if strings.HasPrefix(text, "@@") {
			exceptions = append(exceptions, text)
		}
	}

	a := &ExceptionAuditor{}
	if len(exceptions) == 0 {
		return a, nil
	}

	rulesStr := strings.Join(exceptions, "\n")
	stringList := filterlist.NewString(&filterlist.StringConfig{
		RulesText:      rulesStr,
		ID:             1,
		IgnoreCosmetic: true,
	})

	storage, err := filterlist.NewRuleStorage([]filterlist.Interface{stringList})
	if err != nil {
		return nil, err
	}
	a.engine = urlfilter.NewDNSEngine(storage)

	ruleScanner := filterlist.NewRuleScanner(strings.NewReader(rulesStr), 1, true)
	for ruleScanner.Scan() {
		a.ruleCount++
	}
	return a, nil
}

// Audit 返回该主机名是否会被某条（已丢弃的）白名单规则放行，以及规则原文
func (a *ExceptionAuditor) Audit(host string) (bool, string) {
	if a == nil || a.engine == nil || host == "" {
		return false, ""
	}

	result, matched := a.engine.Match(host)
	if !matched || result == nil || result.NetworkRule == nil {
		return false, ""
	}

	ruleText := result.NetworkRule.Text()
	return strings.HasPrefix(ruleText, "@@"), ruleText
}

// Count 返回白名单规则数量
func (a *ExceptionAuditor) Count() int {
	if a == nil || a.engine == nil {
		return 0
	}
	if a.engine.RulesCount > 0 {
		return a.engine.RulesCount
	}
	return a.ruleCount
}
