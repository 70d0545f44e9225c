package engine

import (
	"context"
	"time"

	"trackerlens/adblock"
	"trackerlens/metrics"
)

// ReloadRules 构建新规则集并安装到引擎
// 构建在调用方的 goroutine 中完成，只有安装这一步进入执行器。
// 并发调用会被串行化，构建失败时保留旧规则集。
func (e *Engine) ReloadRules(ctx context.Context, mgr *adblock.Manager, fetch bool) (adblock.LoadReport, error) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	start := time.Now()
	store, report, err := mgr.Load(ctx, fetch)
	metrics.RuleLoadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Errorf("rule load failed, keeping current rule set: %v", err)
		return report, err
	}

	var auditor Auditor
	if a := mgr.Auditor(); a != nil {
		auditor = a
	}
	if err := e.InstallMatcher(ctx, store, auditor); err != nil {
		return report, err
	}
	return report, nil
}
