package adblock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trackerlens/config"
)

// Manager 负责规则源的获取、解析和 PatternStore 的构建
// 构建在调用方的 goroutine 中进行，结果由调用方一次性安装到匹配路径上。
type Manager struct {
	cfg         *config.RulesConfig
	sourcesMgr  *SourceManager
	loader      *RuleLoader
	categorizer *Categorizer

	mu         sync.RWMutex
	auditor    *ExceptionAuditor
	lastReport LoadReport
}

func NewManager(cfg *config.RulesConfig) (*Manager, error) {
	categorizer, err := NewCategorizer(cfg.Categories)
	if err != nil {
		return nil, fmt.Errorf("error creating categorizer: %w", err)
	}

	sourcesMgr, err := NewSourceManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating source manager: %w", err)
	}

	return &Manager{
		cfg:         cfg,
		sourcesMgr:  sourcesMgr,
		loader:      NewRuleLoader(cfg),
		categorizer: categorizer,
	}, nil
}

// Load 获取（可选）并构建规则集
// 获取失败只记录日志；返回的 store 总是可用，可能为空或不完整。
func (m *Manager) Load(ctx context.Context, fetch bool) (*PatternStore, LoadReport, error) {
	start := time.Now()

	var failed []string
	if fetch {
		failed = m.loader.FetchAll(ctx, m.sourcesMgr)
		if err := m.sourcesMgr.SaveMeta(); err != nil {
			loaderLog.Warnf("save rules metadata: %v", err)
		}
	}

	sources := m.sourcesMgr.GetAllSources()
	lines, err := m.loader.LoadAllRules(ctx, sources)
	if err != nil {
		return NewPatternStore(), LoadReport{}, err
	}

	store, report, err := Build(ctx, lines, m.categorizer, m.cfg.LoadChunkSize)
	report.Sources = len(sources)
	report.FailedSources = failed
	report.DurationSeconds = time.Since(start).Seconds()
	if err != nil {
		return store, report, err
	}

	var auditor *ExceptionAuditor
	if m.cfg.AuditExceptions {
		auditor, err = NewExceptionAuditor(lines)
		if err != nil {
			loaderLog.Warnf("allowlist audit disabled: %v", err)
		} else {
			report.Exceptions = auditor.Count()
		}
	}

	m.mu.Lock()
	m.auditor = auditor
	m.lastReport = report
	m.mu.Unlock()

	loaderLog.Infof("built %d patterns from %d lines (%d skipped, %d sources, %d failed) in %.2fs",
		report.Patterns, report.Lines, report.SkippedTotal(), report.Sources, len(failed), report.DurationSeconds)
	return store, report, nil
}

// Auditor 返回最近一次加载生成的白名单审计器，可能为 nil
func (m *Manager) Auditor() *ExceptionAuditor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.auditor
}

func (m *Manager) LastReport() LoadReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastReport
}

func (m *Manager) GetSources() []SourceStatus {
	return m.sourcesMgr.GetStatuses()
}

// SetSourceEnabled 启用或禁用规则源并保存元数据，下次 Load 时生效
func (m *Manager) SetSourceEnabled(url string, enabled bool) error {
	if !m.sourcesMgr.SetEnabled(url, enabled) {
		return fmt.Errorf("unknown rule source: %s", url)
	}
	return m.sourcesMgr.SaveMeta()
}
