package engine

import (
	"context"
	"fmt"

	"trackerlens/adblock"
	util "trackerlens/internal"
	"trackerlens/metrics"
	"trackerlens/session"
)

// Command is the closed set of requests the outer UI can send.
type Command interface {
	isCommand()
}

type (
	// GetSessionState returns the recent events and counts of one session.
	GetSessionState struct{ Handle string }
	// ClearSessionLog empties the recent-event list; counts are kept.
	ClearSessionLog struct{ Handle string }
	// GetGlobalTotal returns the all-time match total.
	GetGlobalTotal struct{}
	// GetGlobalCounters returns every global counter.
	GetGlobalCounters struct{}
	// SetEnabled toggles observation and refreshes every badge.
	SetEnabled struct{ Enabled bool }
	// ResetAll zeroes counters and drops sessions, caches and stored state.
	ResetAll struct{}
	// RequestBadgeRefresh schedules a repaint for one session, or all when
	// Handle is empty.
	RequestBadgeRefresh struct{ Handle string }
	// TestURL matches a URL without recording anything.
	TestURL struct{ URL string }
)

func (GetSessionState) isCommand()     {}
func (ClearSessionLog) isCommand()     {}
func (GetGlobalTotal) isCommand()      {}
func (GetGlobalCounters) isCommand()   {}
func (SetEnabled) isCommand()          {}
func (ResetAll) isCommand()            {}
func (RequestBadgeRefresh) isCommand() {}
func (TestURL) isCommand()             {}

// Result is one of Ack, SessionState, GlobalTotal, GlobalCounters or
// TestResult depending on the command.
type Result interface{}

// Ack 无返回值命令的确认
type Ack struct {
	OK bool `json:"ok"`
}

// SessionState 会话状态，事件按最新在前，时间为 UTC
type SessionState struct {
	Handle       string          `json:"handle"`
	Domain       string          `json:"domain"`
	Events       []session.Event `json:"events"`
	TotalCount   int             `json:"total_count"`
	AdCount      int             `json:"ad_count"`
	TrackerCount int             `json:"tracker_count"`
}

// GlobalTotal 全局累计匹配数
type GlobalTotal struct {
	Total int64 `json:"total"`
}

// TestResult URL 诊断结果
type TestResult struct {
	URL         string           `json:"url"`
	Host        string           `json:"host"`
	Matched     bool             `json:"matched"`
	Category    adblock.Category `json:"category,omitempty"`
	Cached      bool             `json:"cached"`
	Allowlisted bool             `json:"allowlisted"`
	AllowRule   string           `json:"allow_rule,omitempty"`
}

// Execute 执行一条命令
func (e *Engine) Execute(ctx context.Context, cmd Command) (Result, error) {
	var result Result
	err := e.call(ctx, func() error {
		var err error
		result, err = e.dispatch(cmd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) dispatch(cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case GetSessionState:
		return e.getSessionState(c)
	case ClearSessionLog:
		if c.Handle == "" {
			return nil, fmt.Errorf("%w: empty handle", ErrInvalidCommand)
		}
		if e.sessions.ClearLog(c.Handle) {
			e.batcher.MarkDirty(c.Handle)
		}
		return Ack{OK: true}, nil
	case GetGlobalTotal:
		return GlobalTotal{Total: e.counters.TotalMatches}, nil
	case GetGlobalCounters:
		return e.counters, nil
	case SetEnabled:
		e.setEnabled(c.Enabled)
		return Ack{OK: true}, nil
	case ResetAll:
		e.resetAll()
		return Ack{OK: true}, nil
	case RequestBadgeRefresh:
		if c.Handle != "" {
			e.effects.RequestBadge(c.Handle)
		} else {
			for _, id := range e.sessions.IDs() {
				e.effects.RequestBadge(id)
			}
		}
		return Ack{OK: true}, nil
	case TestURL:
		if c.URL == "" {
			return nil, fmt.Errorf("%w: empty url", ErrInvalidCommand)
		}
		return e.testURL(c.URL), nil
	case nil:
		return nil, fmt.Errorf("%w: nil command", ErrInvalidCommand)
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidCommand, cmd)
	}
}

// getSessionState 未知句柄返回空状态，不视为错误
func (e *Engine) getSessionState(c GetSessionState) (Result, error) {
	if c.Handle == "" {
		return nil, fmt.Errorf("%w: empty handle", ErrInvalidCommand)
	}
	state := SessionState{Handle: c.Handle, Events: []session.Event{}}
	s, ok := e.sessions.Get(c.Handle)
	if !ok {
		return state, nil
	}

	events := s.Events()
	for i := range events {
		events[i].Timestamp = events[i].Timestamp.UTC()
	}
	state.Domain = s.Domain
	state.Events = events
	state.TotalCount = s.TotalCount
	state.AdCount = s.AdCount
	state.TrackerCount = s.TrackerCount
	return state, nil
}

func (e *Engine) setEnabled(enabled bool) {
	if e.counters.Enabled != enabled {
		log.Infof("observation enabled=%v", enabled)
	}
	e.counters.Enabled = enabled
	e.batcher.MarkGlobals()
	// 开关状态变化需要立即反映在所有角标上
	for _, id := range e.sessions.IDs() {
		e.effects.RefreshNow(id)
	}
}

func (e *Engine) resetAll() {
	ids := e.sessions.IDs()
	e.sessions.Reset()
	e.counters = GlobalCounters{Enabled: e.counters.Enabled}
	e.matchCache.Clear()
	e.display.Clear()
	e.effects.CancelAll()
	e.batcher.Reset()
	e.stats.Reset()
	metrics.ActiveSessions.Set(0)
	log.Infof("reset all state (%d sessions dropped)", len(ids))
}

// testURL 不经过缓存，也不记录任何事件
func (e *Engine) testURL(url string) TestResult {
	host := util.ExtractHostname(url)
	result := e.matcher.Match(url)
	tr := TestResult{
		URL:      url,
		Host:     host,
		Matched:  result.Matched,
		Category: result.Category,
		Cached:   e.matchCache.Has(url),
	}
	if e.auditor != nil {
		tr.Allowlisted, tr.AllowRule = e.auditor.Audit(host)
	}
	return tr
}
